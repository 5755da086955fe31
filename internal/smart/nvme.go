package smart

import (
	"fmt"
	"strconv"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// NVMe pseudo attribute IDs. They live in their own range so they never
// collide with ATA attribute IDs in the threshold table.
const (
	NVMeCriticalWarning      = 1001
	NVMeTemperature          = 1002
	NVMeAvailableSpare       = 1003
	NVMeAvailableSpareThresh = 1004
	NVMePercentageUsed       = 1005
	NVMeDataUnitsRead        = 1006
	NVMeDataUnitsWritten     = 1007
	NVMePowerOnHours         = 1008
	NVMeMediaErrors          = 1009
	NVMeNumErrLogEntries     = 1010
)

// nvmeFields maps nvme_smart_health_information_log keys to pseudo attributes,
// in the order they are emitted.
var nvmeFields = []struct {
	Key  string
	ID   int
	Name string
}{
	{"critical_warning", NVMeCriticalWarning, "Critical Warning"},
	{"temperature", NVMeTemperature, "Temperature"},
	{"available_spare", NVMeAvailableSpare, "Available Spare"},
	{"available_spare_threshold", NVMeAvailableSpareThresh, "Available Spare Threshold"},
	{"percentage_used", NVMePercentageUsed, "Percentage Used"},
	{"data_units_read", NVMeDataUnitsRead, "Data Units Read"},
	{"data_units_written", NVMeDataUnitsWritten, "Data Units Written"},
	{"power_on_hours", NVMePowerOnHours, "Power On Hours"},
	{"media_errors", NVMeMediaErrors, "Media Errors"},
	{"num_err_log_entries", NVMeNumErrLogEntries, "Error Log Entries"},
}

// ParseNVMeHealthLog maps the nvme_smart_health_information_log object of
// `smartctl -j` output to pseudo SMART attributes.
func ParseNVMeHealthLog(log map[string]any) ([]model.SMARTAttribute, error) {
	attrs := make([]model.SMARTAttribute, 0, len(nvmeFields))

	for _, f := range nvmeFields {
		v, ok := log[f.Key]
		if !ok {
			continue
		}
		n, err := toInt64(v)
		if err != nil {
			continue
		}
		attrs = append(attrs, model.SMARTAttribute{
			ID:        f.ID,
			Name:      f.Name,
			RawValue:  n,
			RawString: strconv.FormatInt(n, 10),
		})
	}

	if len(attrs) == 0 {
		return nil, fmt.Errorf("no NVMe SMART attributes found in health log")
	}

	return attrs, nil
}

// evaluateNVMe applies the NVMe health log rules: a non-zero critical warning
// or spare below threshold is a device-reported failure, media errors or a
// worn-out endurance estimate is a warning.
func evaluateNVMe(attrs []model.SMARTAttribute) int {
	byID := make(map[int]int64, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a.RawValue
	}

	status := model.StatusPassed
	for i := range attrs {
		a := &attrs[i]
		a.Status = model.StatusPassed
		switch a.ID {
		case NVMeCriticalWarning:
			if a.RawValue != 0 {
				a.Status = model.StatusFailedSmart
			}
		case NVMeAvailableSpare:
			if thresh, ok := byID[NVMeAvailableSpareThresh]; ok && a.RawValue < thresh {
				a.Status = model.StatusFailedSmart
			}
		case NVMePercentageUsed:
			if a.RawValue >= 100 {
				a.Status = model.StatusWarnScrutiny
			}
		case NVMeMediaErrors:
			if a.RawValue > 0 {
				a.Status = model.StatusWarnScrutiny
			}
		}
		status |= a.Status
	}
	return status
}
