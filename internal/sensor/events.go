package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Event log severity names, as the classifier was trained on them.
const (
	LevelInformation  = "Information"
	LevelWarning      = "Warning"
	LevelError        = "Error"
	LevelAuditSuccess = "Audit Success"
	LevelAuditFailure = "Audit Failure"
)

// Journal reads the most recent systemd journal entry.
type Journal struct {
	Run CommandRunner
}

func (Journal) Name() string { return "journal" }

func (j Journal) Read(ctx context.Context) (Readings, error) {
	run := j.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, "journalctl", "-n", "1", "-o", "json", "--no-pager", "-q")
	if err != nil {
		return Readings{}, Unavailable("journal", err)
	}
	level, id, err := parseJournalEntry(out)
	if err != nil {
		return Readings{}, Unavailable("journal", err)
	}
	return Readings{EventLevel: new(level), EventID: id}, nil
}

// parseJournalEntry maps a journald JSON entry to a severity name. Syslog
// priorities 0-3 are errors and 4 is a warning. EVENT_ID is only present
// on entries forwarded from Windows hosts.
func parseJournalEntry(out []byte) (string, *int64, error) {
	line := bytes.TrimSpace(out)
	if len(line) == 0 {
		return "", nil, errors.New("journal is empty")
	}
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		return "", nil, fmt.Errorf("parsing journal entry: %w", err)
	}

	level := LevelInformation
	if p, ok := entry["PRIORITY"].(string); ok {
		n, err := strconv.Atoi(p)
		if err == nil {
			switch {
			case n <= 3:
				level = LevelError
			case n == 4:
				level = LevelWarning
			}
		}
	}

	var id *int64
	if s, ok := entry["EVENT_ID"].(string); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
			id = &n
		}
	}
	return level, id, nil
}

// WindowsEventLog reads the most recent System event with wevtutil.
type WindowsEventLog struct {
	Channel string // "System" when empty
	Run     CommandRunner
}

func (WindowsEventLog) Name() string { return "eventlog" }

func (w WindowsEventLog) Read(ctx context.Context) (Readings, error) {
	run := w.Run
	if run == nil {
		run = ExecRunner
	}
	channel := w.Channel
	if channel == "" {
		channel = "System"
	}
	out, err := run(ctx, "wevtutil", "qe", channel, "/c:1", "/rd:true", "/f:xml")
	if err != nil {
		return Readings{}, Unavailable("eventlog", err)
	}
	level, id, err := parseWindowsEvent(out)
	if err != nil {
		return Readings{}, Unavailable("eventlog", err)
	}
	return Readings{EventLevel: new(level), EventID: new(id)}, nil
}

type windowsEvent struct {
	System struct {
		EventID  string `xml:"EventID"`
		Level    int    `xml:"Level"`
		Keywords string `xml:"Keywords"`
	} `xml:"System"`
}

const (
	keywordAuditFailure = 0x10000000000000
	keywordAuditSuccess = 0x20000000000000
)

// parseWindowsEvent maps a rendered event to a severity name and event ID.
// Security audit events carry Level 0 and encode the outcome in Keywords.
func parseWindowsEvent(out []byte) (string, int64, error) {
	var ev windowsEvent
	if err := xml.Unmarshal(bytes.TrimSpace(out), &ev); err != nil {
		return "", 0, fmt.Errorf("parsing event XML: %w", err)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(ev.System.EventID), 10, 64)
	if err != nil || id < 0 {
		return "", 0, fmt.Errorf("invalid event ID %q", ev.System.EventID)
	}

	if kw, err := strconv.ParseUint(strings.TrimPrefix(ev.System.Keywords, "0x"), 16, 64); err == nil {
		switch {
		case kw&keywordAuditFailure != 0:
			return LevelAuditFailure, id, nil
		case kw&keywordAuditSuccess != 0:
			return LevelAuditSuccess, id, nil
		}
	}

	switch ev.System.Level {
	case 1, 2:
		return LevelError, id, nil
	case 3:
		return LevelWarning, id, nil
	default:
		return LevelInformation, id, nil
	}
}
