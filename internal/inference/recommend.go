package inference

import (
	"fmt"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/smart"
)

// Threshold is a warning/critical pair for one metric. A value strictly
// above a bound escalates.
type Threshold struct {
	Warning  float64
	Critical float64
}

// Escalation thresholds applied regardless of the predicted category.
var (
	CPUThreshold         = Threshold{Warning: 85, Critical: 95}
	RAMThreshold         = Threshold{Warning: 90, Critical: 95}
	TemperatureThreshold = Threshold{Warning: 60, Critical: 80}
	SectorThreshold      = Threshold{Warning: 10, Critical: 50}
	ErrorThreshold       = Threshold{Warning: 5, Critical: 20}
)

var baseRecommendations = map[model.Category][]string{
	model.CategoryNormal: {
		"System operating normally",
		"Review system logs periodically",
	},
	model.CategoryCPUOverload: {
		"Stop non-essential processes",
		"Check scheduled tasks with heavy CPU usage",
		"Improve system ventilation",
		"Consider a processor upgrade if this recurs",
	},
	model.CategoryRAMPressure: {
		"Close unused applications",
		"Check for memory leaks with a profiler",
		"Add RAM if the problem persists",
		"Tune virtual memory settings",
	},
	model.CategoryHighTemperature: {
		"Clean fans and air vents",
		"Check that all fans are spinning",
		"Use a ventilated stand for laptops",
		"Avoid soft surfaces that block airflow",
	},
	model.CategoryBadSectors: {
		"Run a full disk surface scan",
		"Back up critical data immediately",
		"Replace the disk above 50 reallocated sectors",
		"Avoid hard power-offs",
	},
	model.CategorySystemErrors: {
		"Analyse the system event log",
		"Update drivers and the operating system",
		"Run a system file integrity check",
		"Consider a system restore if errors recur",
	},
	model.CategorySystemWarnings: {
		"Review warnings in the event log",
		"Check free disk space",
		"Check backup status",
		"Update the affected applications",
	},
	model.CategoryPacketLoss: {
		"Restart the router or modem",
		"Test with a wired connection instead of WiFi",
		"Check for network interference",
		"Update network drivers",
	},
	model.CategoryMotherboardOverheat: {
		"Shut the system down immediately above 85°C",
		"Check heatsink contact",
		"Remove dust from the chassis",
		"Contact a technician if the problem persists",
	},
	model.CategoryGPUOverheat: {
		"Lower graphics quality settings",
		"Clean the graphics card fans",
		"Check the GPU cooling",
		"Avoid unstable overclocks",
	},
	model.CategoryDiskEndOfLife: {
		"Schedule disk replacement now",
		"Migrate to an SSD",
		"Check SMART status regularly",
		"Do not keep critical data on this disk",
	},
	model.CategoryLowBattery: {
		"Replace the battery below 60% capacity",
		"Avoid full charge/discharge cycles",
		"Enable power saving mode",
		"Keep the charge between 20% and 80%",
	},
	model.CategoryUnknown: {
		"Diagnosis in progress",
		"Check the logs for more information",
	},
}

// BaseRecommendations returns the fixed remediation steps for c. Unknown
// categories get the diagnostic fallback list.
func BaseRecommendations(c model.Category) []string {
	recs, ok := baseRecommendations[c]
	if !ok {
		recs = baseRecommendations[model.CategoryUnknown]
	}
	return append([]string(nil), recs...)
}

// Recommend builds the recommendation list for a prediction: threshold
// escalations first, most severe metric order, then the category's base
// steps. Each metric contributes at most one escalation.
func Recommend(c model.Category, v model.FeatureVector) []string {
	var recs []string

	if msg := escalate(v.CPUUsage, CPUThreshold,
		"CRITICAL: CPU at %.1f%%, stop non-essential processes now",
		"Warning: CPU at %.1f%%"); msg != "" {
		recs = append(recs, msg)
	}
	if msg := escalate(v.RAMUsage, RAMThreshold,
		"CRITICAL: RAM at %.1f%%, memory upgrade required",
		"Warning: RAM at %.1f%%"); msg != "" {
		recs = append(recs, msg)
	}
	if msg := escalate(v.Temperature, TemperatureThreshold,
		"CRITICAL: temperature at %.1f°C, shut down to avoid damage",
		"Warning: temperature at %.1f°C"); msg != "" {
		recs = append(recs, msg)
	}
	if msg := sectorEscalation(v.ReallocatedSectors); msg != "" {
		recs = append(recs, msg)
	}
	errs := v.ReadErrors + v.WriteErrors
	if msg := escalate(float64(errs), ErrorThreshold,
		"CRITICAL: %.0f disk I/O errors, technical intervention required",
		"Warning: %.0f disk I/O errors"); msg != "" {
		recs = append(recs, msg)
	}

	return append(recs, BaseRecommendations(c)...)
}

func escalate(value float64, t Threshold, critical, warning string) string {
	switch {
	case value > t.Critical:
		return fmt.Sprintf(critical, value)
	case value > t.Warning:
		return fmt.Sprintf(warning, value)
	default:
		return ""
	}
}

func sectorEscalation(n int64) string {
	msg := escalate(float64(n), SectorThreshold,
		"URGENT: %.0f reallocated sectors, replace the disk",
		"Warning: %.0f reallocated sectors")
	if msg == "" {
		return ""
	}
	if afr, ok := smart.ReallocatedFailureRate(n); ok {
		msg += fmt.Sprintf(" (%.1f%% annual failure rate for drives at this count)", afr*100)
	}
	return msg
}
