package health

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a check. Higher values are worse.
type Status int

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component works with reduced capability.
	StatusDegraded
	// StatusFailing indicates the component cannot serve.
	StatusFailing
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusFailing:
		return "failing"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts a case-insensitive status name. "unhealthy" is
// accepted as an alias for failing.
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "healthy", "":
		return StatusHealthy, nil
	case "degraded":
		return StatusDegraded, nil
	case "failing", "unhealthy":
		return StatusFailing, nil
	default:
		return StatusFailing, fmt.Errorf("unknown health status %q", name)
	}
}

// Worst returns the most severe of the given statuses, or healthy for none.
func Worst(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// Result is what a check reports for one invocation.
type Result struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Healthy returns a healthy result.
func Healthy() Result { return Result{Status: StatusHealthy} }

// Degraded returns a degraded result with a reason.
func Degraded(reason string) Result { return Result{Status: StatusDegraded, Reason: reason} }

// Failing returns a failing result with a reason.
func Failing(reason string) Result { return Result{Status: StatusFailing, Reason: reason} }

// CheckReport is the result of one named check in a tick.
type CheckReport struct {
	Result
	Duration  time.Duration `json:"-"`
	CheckedAt time.Time     `json:"checked_at"`
}

// MarshalJSON adds the duration in milliseconds.
func (c CheckReport) MarshalJSON() ([]byte, error) {
	type plain CheckReport
	return json.Marshal(struct {
		plain
		DurationMs float64 `json:"duration_ms"`
	}{plain(c), float64(c.Duration.Microseconds()) / 1000})
}

// Report is the aggregated outcome of one tick.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckReport `json:"checks"`
	CheckedAt time.Time              `json:"checked_at"`
	// Tick counts published periodic reports; zero before the first tick.
	Tick uint64 `json:"tick"`
}

// Aggregate computes the worst status over a set of check reports.
func Aggregate(checks map[string]CheckReport) Status {
	worst := StatusHealthy
	for _, c := range checks {
		worst = Worst(worst, c.Status)
	}
	return worst
}

func (r Report) clone() Report {
	out := r
	out.Checks = make(map[string]CheckReport, len(r.Checks))
	for name, c := range r.Checks {
		out.Checks[name] = c
	}
	return out
}
