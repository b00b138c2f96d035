package database

import (
	"context"
	"time"

	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store"
)

// Health states reported by HealthCheck.
const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// HealthStatus is the result of HealthCheck.
type HealthStatus struct {
	Status  string        `json:"status"`
	Backend string        `json:"database"`
	Message string        `json:"message"`
	Latency time.Duration `json:"latency"`
	Checked time.Time     `json:"checkedAt"`
}

// OK reports whether the status is Healthy.
func (s HealthStatus) OK() bool { return s.Status == Healthy }

// Ping connects if needed and performs one round trip. It satisfies
// health.Pinger.
func (d *Database) Ping(ctx context.Context) error {
	h, err := d.handlerFor(ctx)
	if err != nil {
		return err
	}
	return h.Ping(ctx)
}

// HealthCheck pings the backend and reports the outcome. Failures,
// including connection failures, become Unhealthy; it never returns an
// error.
func (d *Database) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	ev := log.Event(source, "health").Detail("backend", d.backend)
	err := d.Ping(ctx)
	ev.Write(err)

	st := HealthStatus{
		Backend: d.backend,
		Latency: time.Since(start),
		Checked: d.now().UTC(),
	}
	if err != nil {
		st.Status = Unhealthy
		st.Message = err.Error()
		return st
	}
	st.Status = Healthy
	st.Message = "database connection ok"
	return st
}

// Status describes the facade without connecting.
type Status struct {
	Backend   string            `json:"backend"`
	Connected bool              `json:"connected"`
	Details   map[string]string `json:"details,omitempty"`
}

// Status reports the backend and whether a live handler exists. Details
// come from the handler when it implements store.Describer.
func (d *Database) Status() Status {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	st := Status{Backend: d.backend}
	if h == nil {
		return st
	}
	st.Connected = h.IsConnected()
	if desc, ok := h.(store.Describer); ok {
		st.Details = desc.Describe()
	}
	return st
}
