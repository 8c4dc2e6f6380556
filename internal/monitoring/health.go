// Package monitoring implements the system-wide health check consumed by the
// assistant's health-check tool and the readiness endpoint.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

const checkTimeout = 3 * time.Second

// Status is the aggregate health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckStatus is the status of a single dependency check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Check is the result of one dependency check.
type Check struct {
	Status     CheckStatus    `json:"status"`
	Message    string         `json:"message"`
	DurationMs int64          `json:"durationMs"`
	Details    map[string]any `json:"details,omitempty"`
}

// HealthResult is the full system health report.
type HealthResult struct {
	Status      Status           `json:"status"`
	Timestamp   time.Time        `json:"timestamp"`
	UptimeSecs  float64          `json:"uptimeSecs"`
	Checks      map[string]Check `json:"checks"`
	Version     string           `json:"version"`
	Environment string           `json:"environment"`
}

// StripDetails removes per-check diagnostic details, leaving status and
// message only. Used when a caller asks for the summary form.
func (r *HealthResult) StripDetails() {
	for name, c := range r.Checks {
		c.Details = nil
		r.Checks[name] = c
	}
}

// Pinger checks connectivity to a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs the system health check against registered dependencies.
type Checker struct {
	db          Pinger
	erp         Pinger
	version     string
	environment string
	startedAt   time.Time
	logger      *slog.Logger
}

// NewChecker creates a Checker. Either pinger may be nil, in which case the
// corresponding check reports a warning instead of probing.
func NewChecker(db, erp Pinger, version, environment string, logger *slog.Logger) *Checker {
	return &Checker{
		db:          db,
		erp:         erp,
		version:     version,
		environment: environment,
		startedAt:   time.Now().UTC(),
		logger:      logger,
	}
}

// Run executes all checks and aggregates the result. A single fail marks the
// system unhealthy; a warn marks it degraded.
func (c *Checker) Run(ctx context.Context) *HealthResult {
	checks := map[string]Check{
		"database": c.pingCheck(ctx, "database", c.db),
		"erp":      c.pingCheck(ctx, "erp", c.erp),
		"memory":   memoryCheck(),
	}

	status := StatusHealthy
	for _, check := range checks {
		switch check.Status {
		case CheckFail:
			status = StatusUnhealthy
		case CheckWarn:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}

	result := &HealthResult{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		UptimeSecs:  time.Since(c.startedAt).Seconds(),
		Checks:      checks,
		Version:     c.version,
		Environment: c.environment,
	}

	if status != StatusHealthy {
		c.logger.Warn("system health check", slog.String("status", string(status)))
	}

	return result
}

func (c *Checker) pingCheck(ctx context.Context, name string, p Pinger) Check {
	if p == nil {
		return Check{Status: CheckWarn, Message: name + " check not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return Check{
			Status:     CheckFail,
			Message:    fmt.Sprintf("%s unreachable: %v", name, err),
			DurationMs: elapsed.Milliseconds(),
		}
	}
	return Check{
		Status:     CheckPass,
		Message:    name + " reachable",
		DurationMs: elapsed.Milliseconds(),
		Details:    map[string]any{"latencyMs": elapsed.Milliseconds()},
	}
}

// memoryCheck reports current heap usage. Warns above 90% of the configured
// GC target to surface pressure before the runtime starts thrashing.
func memoryCheck() Check {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := CheckPass
	msg := "memory usage normal"
	if m.NextGC > 0 && m.HeapAlloc > m.NextGC*9/10 {
		status = CheckWarn
		msg = "heap allocation approaching GC target"
	}

	return Check{
		Status:  status,
		Message: msg,
		Details: map[string]any{
			"heapAllocBytes": m.HeapAlloc,
			"numGoroutine":   runtime.NumGoroutine(),
		},
	}
}
