package sensor

import "context"

// Static returns the same readings on every call. It stands in for real
// probes in demos and tests.
type Static struct {
	Label    string
	Readings Readings
	Err      error
}

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s Static) Read(context.Context) (Readings, error) {
	if s.Err != nil {
		return Readings{}, Unavailable(s.Name(), s.Err)
	}
	return s.Readings, nil
}
