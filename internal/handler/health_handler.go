package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/promptlab-api/internal/config"
	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
	dependencyUp         = "up"
	dependencyDown       = "down"
	defaultCheckTimeout  = 2 * time.Second
)

// DependencyCheck pings one backing service. Checks run in parallel.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// DependencyStatus is the outcome of one DependencyCheck.
type DependencyStatus struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Service      string                      `json:"service"`
	Environment  string                      `json:"environment"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// HealthCheck reports readiness of the database and whichever of Redis, NATS
// and the AI provider are configured. Any failing check turns the response
// into a 503.
func HealthCheck(cfg config.Config, checks ...DependencyCheck) fiber.Handler {
	timeout := cfg.HealthCheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      healthStatusOK,
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			payload.Dependencies = runChecks(c.UserContext(), timeout, checks)
			for _, dependency := range payload.Dependencies {
				if dependency.Status != dependencyUp {
					payload.Status = healthStatusDegraded
					break
				}
			}
		}

		if payload.Status != healthStatusOK {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
			})
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func runChecks(parent context.Context, timeout time.Duration, checks []DependencyCheck) map[string]DependencyStatus {
	if parent == nil {
		parent = context.Background()
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]DependencyStatus, len(checks))
	)
	for _, check := range checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()

			start := time.Now()
			err := check.Check(ctx)
			status := DependencyStatus{
				Status:    dependencyUp,
				LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
			}
			if err != nil {
				status.Status = dependencyDown
				status.Error = err.Error()
			}
			observability.DependencyUp().WithLabelValues(check.Name).Set(boolGauge(err == nil))

			mu.Lock()
			results[check.Name] = status
			mu.Unlock()
		}(check)
	}
	wg.Wait()
	return results
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
