package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type HealthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
	now    func() time.Time
}

// HealthCheck is one named probe. Readiness checks gate /ready only;
// liveness checks gate both /health and /ready.
type HealthCheck struct {
	Name      string
	Check     func(ctx context.Context) error
	Timeout   time.Duration
	Readiness bool
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s HealthStatus) Healthy() bool {
	return s.Status == "healthy"
}

// Pinger is anything with a health probe, such as the kafka sink or the
// repository factory.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{now: time.Now}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.add(HealthCheck{Name: name, Check: check, Timeout: timeout})
}

func (h *HealthChecker) AddReadinessCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.add(HealthCheck{Name: name, Check: check, Timeout: timeout, Readiness: true})
}

func (h *HealthChecker) AddPingerCheck(name string, p Pinger, timeout time.Duration) {
	h.AddReadinessCheck(name, p.HealthCheck, timeout)
}

// AddQueueCheck fails readiness once pending reaches limit.
func (h *HealthChecker) AddQueueCheck(name string, pending func() int, limit int) {
	h.AddReadinessCheck(name, func(ctx context.Context) error {
		if n := pending(); n >= limit {
			return fmt.Errorf("queue backlog %d/%d", n, limit)
		}
		return nil
	}, time.Second)
}

// CheckLiveness runs liveness checks only.
func (h *HealthChecker) CheckLiveness(ctx context.Context) HealthStatus {
	return h.run(ctx, false)
}

// CheckReadiness runs every check.
func (h *HealthChecker) CheckReadiness(ctx context.Context) HealthStatus {
	return h.run(ctx, true)
}

func (h *HealthChecker) add(check HealthCheck) {
	if check.Timeout <= 0 {
		check.Timeout = 2 * time.Second
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

func (h *HealthChecker) run(ctx context.Context, readiness bool) HealthStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, 0, len(h.checks))
	for _, c := range h.checks {
		if readiness || !c.Readiness {
			checks = append(checks, c)
		}
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: h.now(),
		Checks:    make(map[string]string, len(checks)),
	}

	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[check.Name] = err.Error()
			continue
		}
		status.Checks[check.Name] = "healthy"
	}
	return status
}
