package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

// CPU samples total CPU utilisation over a short window.
type CPU struct {
	Window time.Duration // sampling window, 1s when zero
}

func (CPU) Name() string { return "cpu" }

func (c CPU) Read(ctx context.Context) (Readings, error) {
	window := c.Window
	if window <= 0 {
		window = time.Second
	}
	pct, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return Readings{}, Unavailable("cpu", err)
	}
	if len(pct) == 0 {
		return Readings{}, Unavailable("cpu", errors.New("no CPU samples"))
	}
	return Readings{CPUUsage: new(pct[0])}, nil
}

// Memory reports the percentage of physical memory in use.
type Memory struct{}

func (Memory) Name() string { return "memory" }

func (Memory) Read(ctx context.Context) (Readings, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Readings{}, Unavailable("memory", err)
	}
	return Readings{RAMUsage: new(vm.UsedPercent)}, nil
}

// Disk reports the used percentage of the filesystem holding Path.
type Disk struct {
	Path string
}

func (d Disk) Name() string { return "disk:" + d.Path }

func (d Disk) Read(ctx context.Context) (Readings, error) {
	u, err := disk.UsageWithContext(ctx, d.Path)
	if err != nil {
		return Readings{}, Unavailable(d.Name(), err)
	}
	return Readings{DiskUsage: new(u.UsedPercent)}, nil
}

// Temperature reports the hottest CPU-related sensor the OS exposes.
type Temperature struct{}

func (Temperature) Name() string { return "temperature" }

func (Temperature) Read(ctx context.Context) (Readings, error) {
	stats, err := sensors.TemperaturesWithContext(ctx)
	// gopsutil returns partial results alongside warnings.
	if len(stats) == 0 {
		if err == nil {
			err = errors.New("no temperature sensors")
		}
		return Readings{}, Unavailable("temperature", err)
	}

	var maxTemp float64
	var found bool
	for _, s := range stats {
		if !isRelevantChip(s.SensorKey) || s.Temperature <= 0 {
			continue
		}
		if s.Temperature > maxTemp {
			maxTemp = s.Temperature
			found = true
		}
	}
	if !found {
		return Readings{}, Unavailable("temperature", fmt.Errorf("no CPU temperature among %d sensors", len(stats)))
	}
	return Readings{Temperature: new(maxTemp)}, nil
}

// isRelevantChip reports whether a sensor chip or key belongs to the CPU
// package or the ACPI thermal zone.
func isRelevantChip(name string) bool {
	name = strings.ToLower(name)
	for _, r := range []string{"coretemp", "k10temp", "zenpower", "acpitz", "package", "cpu"} {
		if strings.HasPrefix(name, r) {
			return true
		}
	}
	return false
}
