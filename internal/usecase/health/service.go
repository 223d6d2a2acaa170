// Package health aggregates component checks for the /health endpoint.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Status is the aggregated state.
type Status string

// Aggregated states. Degraded means search still answers, possibly without
// the semantic branch or the shared cache; Unhealthy means the record store
// is unreachable.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is one component's outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentRecords   = "records"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

// Report is the outcome of one Check call.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	component string
	critical  bool
	run       func(context.Context) error
}

// Service runs the component probes.
type Service struct {
	probes  []probe
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. Only records is required; a nil cache or embedding
// checker is left out of the report.
func New(records Pinger, cache Pinger, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{timeout: DefaultCheckTimeout, logger: logger}
	s.probes = append(s.probes, probe{ComponentRecords, true, records.Ping})
	if cache != nil {
		s.probes = append(s.probes, probe{ComponentCache, false, cache.Ping})
	}
	if embedding != nil {
		s.probes = append(s.probes, probe{ComponentEmbedding, false, embedding.HealthCheck})
	}
	return s
}

// WithTimeout returns s with a different per-probe bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every component concurrently, so a slow provider does not
// delay the record store answer.
func (s *Service) Check(ctx context.Context) Report {
	errs := make([]error, len(s.probes))
	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			errs[i] = p.run(pctx)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for i, p := range s.probes {
		if errs[i] == nil {
			report.Checks[p.component] = CheckOK
			continue
		}
		s.logger.Warn("Health check failed", zap.String("component", p.component), zap.Error(errs[i]))
		report.Checks[p.component] = CheckError
		switch {
		case p.critical:
			report.Status = Unhealthy
		case report.Status == Healthy:
			report.Status = Degraded
		}
	}
	return report
}
