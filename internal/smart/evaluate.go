package smart

import (
	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// EvaluateAttribute assesses a single ATA SMART attribute and sets its Status
// and FailureRate. It returns the resulting status bitfield value.
func EvaluateAttribute(attr *model.SMARTAttribute) int {
	// Threshold of 0 means "always passing" per ATA spec.
	if attr.Threshold > 0 && attr.Value > 0 && attr.Value <= attr.Threshold {
		attr.Status = model.StatusFailedSmart
		return model.StatusFailedSmart
	}

	thresh, ok := LookupThreshold(attr.ID)
	if !ok {
		attr.Status = model.StatusPassed
		return model.StatusPassed
	}

	bucket := FindBucket(thresh, attr.RawValue)
	critical := IsCritical(attr.ID)

	if bucket != nil {
		rate := bucket.AnnualFailureRate
		attr.FailureRate = &rate

		if critical {
			if rate >= 0.10 {
				attr.Status = model.StatusFailedScrutiny
				return model.StatusFailedScrutiny
			}
		} else {
			if rate >= 0.20 {
				attr.Status = model.StatusFailedScrutiny
				return model.StatusFailedScrutiny
			}
			if rate >= 0.10 {
				attr.Status = model.StatusWarnScrutiny
				return model.StatusWarnScrutiny
			}
		}
	} else if critical {
		attr.Status = model.StatusWarnScrutiny
		return model.StatusWarnScrutiny
	}

	attr.Status = model.StatusPassed
	return model.StatusPassed
}

// EvaluateDisk evaluates all SMART attributes on a disk and sets the disk's
// aggregate Status as the bitwise OR of all attribute statuses. A failed
// overall self-assessment sets StatusFailedSmart regardless of attributes.
func EvaluateDisk(disk *model.Disk) int {
	status := model.StatusPassed
	switch disk.Protocol {
	case "nvme":
		status = evaluateNVMe(disk.Attributes)
	case "scsi":
		status = evaluateSCSI(disk.Attributes)
	default:
		for i := range disk.Attributes {
			status |= EvaluateAttribute(&disk.Attributes[i])
		}
	}
	if !disk.Passed {
		status |= model.StatusFailedSmart
	}
	disk.Status = status
	return status
}

// ReallocatedFailureRate returns the annual failure rate observed for drives
// with n reallocated sectors.
func ReallocatedFailureRate(n int64) (float64, bool) {
	t, ok := LookupThreshold(ATAReallocatedSectors)
	if !ok {
		return 0, false
	}
	b := FindBucket(t, n)
	if b == nil {
		return 0, false
	}
	return b.AnnualFailureRate, true
}

// StatusString renders a status bitfield for logs and the dashboard.
func StatusString(status int) string {
	switch {
	case status&model.StatusFailedSmart != 0:
		return "failed"
	case status&model.StatusFailedScrutiny != 0:
		return "failing"
	case status&model.StatusWarnScrutiny != 0:
		return "warning"
	default:
		return "passed"
	}
}
