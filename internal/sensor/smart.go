package sensor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"

	"github.com/darshan-rambhia/hostwatch/internal/smart"
)

// SMART reads disk error counters with `smartctl -a -j`.
type SMART struct {
	Device string
	Run    CommandRunner
}

func (s SMART) Name() string { return "smart:" + s.Device }

func (s SMART) Read(ctx context.Context) (Readings, error) {
	run := s.Run
	if run == nil {
		run = ExecRunner
	}

	out, err := run(ctx, "smartctl", "-a", "-j", s.Device)
	if err != nil {
		// smartctl sets bits in its exit status for disk conditions as well as
		// for real failures; only give up when it produced no output.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || len(out) == 0 {
			return Readings{}, Unavailable(s.Name(), err)
		}
		slog.Debug("smartctl exited non-zero", "device", s.Device, "error", err)
	}

	disk, err := smart.ParseSmartctlJSON(out)
	if err != nil {
		return Readings{}, Unavailable(s.Name(), err)
	}
	status := smart.EvaluateDisk(&disk)
	if status != 0 {
		slog.Warn("disk health degraded", "device", s.Device, "model", disk.Model, "status", smart.StatusString(status))
	}

	c := smart.Counters(disk)
	return Readings{
		ReadErrors:         new(c.ReadErrors),
		WriteErrors:        new(c.WriteErrors),
		ReallocatedSectors: new(c.ReallocatedSectors),
	}, nil
}
