package smart

import (
	"strconv"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// SCSI pseudo attribute IDs (high range to avoid collision with ATA IDs 1-253).
const (
	SCSITemperature       = 300
	SCSIPowerOnHours      = 301
	SCSIReadUncorrected   = 302
	SCSIWriteUncorrected  = 303
	SCSIGrownDefectList   = 304
	SCSIVerifyUncorrected = 305
)

// ParseSCSI extracts metrics from `smartctl -j` output for SCSI/SAS devices.
// SCSI drives have no attribute table; the useful counters are spread across
// the error counter log and the grown defect list.
func ParseSCSI(doc map[string]any) []model.SMARTAttribute {
	var attrs []model.SMARTAttribute
	add := func(id int, name string, v any) {
		n, err := toInt64(v)
		if err != nil || n < 0 {
			return
		}
		attrs = append(attrs, model.SMARTAttribute{
			ID:        id,
			Name:      name,
			RawValue:  n,
			RawString: strconv.FormatInt(n, 10),
		})
	}

	if temp, ok := doc["temperature"].(map[string]any); ok {
		add(SCSITemperature, "Temperature", temp["current"])
	}
	if pot, ok := doc["power_on_time"].(map[string]any); ok {
		add(SCSIPowerOnHours, "Power On Hours", pot["hours"])
	}
	if ecl, ok := doc["scsi_error_counter_log"].(map[string]any); ok {
		for _, dir := range []struct {
			key  string
			id   int
			name string
		}{
			{"read", SCSIReadUncorrected, "Read Uncorrected Errors"},
			{"write", SCSIWriteUncorrected, "Write Uncorrected Errors"},
			{"verify", SCSIVerifyUncorrected, "Verify Uncorrected Errors"},
		} {
			if m, ok := ecl[dir.key].(map[string]any); ok {
				add(dir.id, dir.name, m["total_uncorrected_errors"])
			}
		}
	}
	if v, ok := doc["scsi_grown_defect_list"]; ok {
		add(SCSIGrownDefectList, "Grown Defect List", v)
	}

	return attrs
}

// evaluateSCSI flags any uncorrected error or grown defect as a warning.
func evaluateSCSI(attrs []model.SMARTAttribute) int {
	status := model.StatusPassed
	for i := range attrs {
		a := &attrs[i]
		a.Status = model.StatusPassed
		switch a.ID {
		case SCSIReadUncorrected, SCSIWriteUncorrected, SCSIVerifyUncorrected, SCSIGrownDefectList:
			if a.RawValue > 0 {
				a.Status = model.StatusWarnScrutiny
			}
		}
		status |= a.Status
	}
	return status
}
