package smart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// ATA attribute IDs the feature vector draws from.
const (
	ATAReadErrorRate      = 1
	ATAReallocatedSectors = 5
	ATAReportedUncorrect  = 187
	ATAMultiZoneErrorRate = 200
)

// ParseSmartctlJSON decodes the output of `smartctl -a -j <device>` into a
// Disk, dispatching on the reported protocol. smartctl exits non-zero for
// many non-fatal conditions, so callers should try to parse its stdout even
// when the command failed.
func ParseSmartctlJSON(data []byte) (model.Disk, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Disk{}, fmt.Errorf("parsing smartctl JSON: %w", err)
	}

	var disk model.Disk
	if dev, ok := doc["device"].(map[string]any); ok {
		disk.DevPath, _ = dev["name"].(string)
		p, _ := dev["protocol"].(string)
		disk.Protocol = strings.ToLower(p)
	}
	disk.Model, _ = doc["model_name"].(string)
	disk.Serial, _ = doc["serial_number"].(string)

	if st, ok := doc["smart_status"].(map[string]any); ok {
		disk.Passed, _ = st["passed"].(bool)
	}
	if temp, ok := doc["temperature"].(map[string]any); ok {
		if n, err := toInt64(temp["current"]); err == nil {
			disk.Temperature = new(int(n))
		}
	}
	if pot, ok := doc["power_on_time"].(map[string]any); ok {
		if n, err := toInt64(pot["hours"]); err == nil {
			disk.PowerOnHours = new(int(n))
		}
	}

	switch disk.Protocol {
	case "ata":
		table, err := ataTable(doc)
		if err != nil {
			return disk, err
		}
		attrs, err := ParseATAAttributes(table)
		if err != nil {
			return disk, fmt.Errorf("parsing ATA attributes: %w", err)
		}
		disk.Attributes = attrs
	case "nvme":
		log, ok := doc["nvme_smart_health_information_log"].(map[string]any)
		if !ok {
			return disk, fmt.Errorf("smartctl output has no NVMe health log")
		}
		attrs, err := ParseNVMeHealthLog(log)
		if err != nil {
			return disk, err
		}
		disk.Attributes = attrs
	case "scsi":
		disk.Attributes = ParseSCSI(doc)
	case "":
		return disk, fmt.Errorf("smartctl output has no device protocol")
	default:
		return disk, fmt.Errorf("unsupported SMART protocol %q", disk.Protocol)
	}

	return disk, nil
}

func ataTable(doc map[string]any) ([]map[string]any, error) {
	sa, ok := doc["ata_smart_attributes"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("smartctl output has no ATA attribute table")
	}
	raw, ok := sa["table"].([]any)
	if !ok {
		return nil, fmt.Errorf("smartctl output has no ATA attribute table")
	}
	table := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			table = append(table, m)
		}
	}
	return table, nil
}

// ErrorCounters is the disk's contribution to the feature vector.
type ErrorCounters struct {
	ReadErrors         int64
	WriteErrors        int64
	ReallocatedSectors int64
}

// Counters projects a parsed disk onto the three error counters the
// classifier consumes.
//
//	ATA:  read = 187 Reported_Uncorrect (1 Raw_Read_Error_Rate when absent),
//	      write = 200 Multi_Zone_Error_Rate, reallocated = 5
//	NVMe: read = media errors, write = error log entries, reallocated = 0
//	SCSI: read/write = uncorrected errors, reallocated = grown defect list
func Counters(d model.Disk) ErrorCounters {
	raw := make(map[int]int64, len(d.Attributes))
	for _, a := range d.Attributes {
		raw[a.ID] = a.RawValue
	}

	var c ErrorCounters
	switch d.Protocol {
	case "ata":
		if v, ok := raw[ATAReportedUncorrect]; ok {
			c.ReadErrors = v
		} else {
			c.ReadErrors = raw[ATAReadErrorRate]
		}
		c.WriteErrors = raw[ATAMultiZoneErrorRate]
		c.ReallocatedSectors = raw[ATAReallocatedSectors]
	case "nvme":
		c.ReadErrors = raw[NVMeMediaErrors]
		c.WriteErrors = raw[NVMeNumErrLogEntries]
	case "scsi":
		c.ReadErrors = raw[SCSIReadUncorrected]
		c.WriteErrors = raw[SCSIWriteUncorrected]
		c.ReallocatedSectors = raw[SCSIGrownDefectList]
	}
	return c
}
