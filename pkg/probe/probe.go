package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"dynview/pkg/host"
)

// DefaultTimeout bounds a single check when the probe sets none.
const DefaultTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent application startup.
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes a list of probes in order and returns their results.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// AnalyzeResults logs the results and returns a combined error if critical
// probes failed.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error, "critical", r.Probe.Critical)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	return errors.Join(criticalErrors...)
}

// Pinger is satisfied by *sql.DB and *db.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database checks that the journal database answers.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check: func(ctx context.Context) error {
			return p.PingContext(ctx)
		},
	}
}

// Metric checks that the metric source reports a usable TPS sample.
func Metric(m host.MetricSource) Probe {
	return Probe{
		Name: "Metric Source",
		Check: func(ctx context.Context) error {
			tps := m.AverageTPS()
			if math.IsNaN(tps) || tps <= 0 {
				return fmt.Errorf("unusable average TPS %v", tps)
			}
			return nil
		},
	}
}
