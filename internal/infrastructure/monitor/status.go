package monitor

import "time"

type Status struct {
	Storage   bool            `json:"storage"`
	Sinks     map[string]bool `json:"sinks"`
	LastCheck time.Time       `json:"last_check"`
}

// Healthy reports whether storage and every sink answered the last probe.
func (s Status) Healthy() bool {
	if !s.Storage {
		return false
	}
	for _, ok := range s.Sinks {
		if !ok {
			return false
		}
	}
	return true
}
