package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJournalEntry(t *testing.T) {
	tests := []struct {
		name      string
		entry     string
		wantLevel string
		wantID    *int64
	}{
		{"info", `{"PRIORITY":"6","MESSAGE":"Started foo"}`, LevelInformation, nil},
		{"notice", `{"PRIORITY":"5"}`, LevelInformation, nil},
		{"warning", `{"PRIORITY":"4"}`, LevelWarning, nil},
		{"error", `{"PRIORITY":"3"}`, LevelError, nil},
		{"emergency", `{"PRIORITY":"0"}`, LevelError, nil},
		{"no priority", `{"MESSAGE":"x"}`, LevelInformation, nil},
		{"forwarded event id", `{"PRIORITY":"3","EVENT_ID":"41"}`, LevelError, new(int64(41))},
		{"negative event id ignored", `{"PRIORITY":"6","EVENT_ID":"-2"}`, LevelInformation, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, id, err := parseJournalEntry([]byte(tt.entry + "\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseJournalEntry_Errors(t *testing.T) {
	_, _, err := parseJournalEntry([]byte("  \n"))
	assert.Error(t, err)
	_, _, err = parseJournalEntry([]byte("-- No entries --"))
	assert.Error(t, err)
}

func TestJournalRead(t *testing.T) {
	j := Journal{Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "journalctl", name)
		assert.Contains(t, args, "json")
		return []byte(`{"PRIORITY":"4","MESSAGE":"disk slow"}`), nil
	}}
	r, err := j.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LevelWarning, *r.EventLevel)
	assert.Nil(t, r.EventID)

	j.Run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("journalctl not found")
	}
	_, err = j.Read(context.Background())
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

const serviceEventXML = `<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'>
<System>
<Provider Name='Service Control Manager'/>
<EventID Qualifiers='16384'>7036</EventID>
<Level>4</Level>
<Keywords>0x8080000000000000</Keywords>
</System>
</Event>`

func TestParseWindowsEvent(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		keywords  string
		wantLevel string
	}{
		{"information", "4", "0x8080000000000000", LevelInformation},
		{"warning", "3", "0x8080000000000000", LevelWarning},
		{"error", "2", "0x8080000000000000", LevelError},
		{"critical", "1", "0x8080000000000000", LevelError},
		{"audit success", "0", "0x8020000000000000", LevelAuditSuccess},
		{"audit failure", "0", "0x8010000000000000", LevelAuditFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<Event><System><EventID>4625</EventID><Level>` + tt.level +
				`</Level><Keywords>` + tt.keywords + `</Keywords></System></Event>`
			level, id, err := parseWindowsEvent([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, int64(4625), id)
		})
	}
}

func TestWindowsEventLogRead(t *testing.T) {
	w := WindowsEventLog{Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "wevtutil", name)
		assert.Equal(t, "System", args[1])
		return []byte(serviceEventXML), nil
	}}
	r, err := w.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LevelInformation, *r.EventLevel)
	assert.Equal(t, int64(7036), *r.EventID)
}

func TestParseWindowsEvent_Errors(t *testing.T) {
	_, _, err := parseWindowsEvent([]byte(`not xml`))
	assert.Error(t, err)
	_, _, err = parseWindowsEvent([]byte(`<Event><System><EventID>abc</EventID></System></Event>`))
	assert.Error(t, err)
}

func FuzzParseJournalEntry(f *testing.F) {
	f.Add([]byte(`{"PRIORITY":"3","MESSAGE_ID":"42"}`))
	f.Add([]byte(`{"PRIORITY":6}`))
	f.Add([]byte("-- No entries --"))
	f.Add([]byte(""))
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic
		_, _, _ = parseJournalEntry(data)
	})
}

func FuzzParseWindowsEvent(f *testing.F) {
	f.Add([]byte(`<Event><System><EventID>7</EventID><Level>2</Level></System></Event>`))
	f.Add([]byte(`not xml`))
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic
		_, _, _ = parseWindowsEvent(data)
	})
}
