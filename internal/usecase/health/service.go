package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure: some discovery paths still work.
	Degraded Status = "degraded"
	// Unhealthy indicates nothing can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name string
	p    Pinger
	// storage components serve proximity discovery, the embedder only text queries
	storage bool
}

// Service coordinates health checks.
type Service struct {
	components []component
}

// New creates a Service. Both arguments can be nil (in-memory deployments).
func New(store, embedding Pinger) *Service {
	s := &Service{}
	if store != nil {
		s.components = append(s.components, component{name: CheckStore, p: store, storage: true})
	}
	if embedding != nil {
		s.components = append(s.components, component{name: CheckEmbedding, p: embedding})
	}
	return s
}

// WithVectorIndex adds a check for a vector backend living outside the main store.
func (s *Service) WithVectorIndex(p Pinger) *Service {
	if p != nil {
		s.components = append(s.components, component{name: CheckVectorIndex, p: p, storage: true})
	}
	return s
}

// Check pings all components concurrently.
//
// A failing embedder only degrades the report: proximity and IP discovery
// keep working without it. The report is unhealthy when every storage
// component fails, or when the embedder is the only component and fails.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.components))

	var wg sync.WaitGroup
	for i, c := range s.components {
		wg.Go(func() {
			results[i] = result(c.p.Ping(ctx))
		})
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(s.components))
	var failed, storage, storageFailed int
	for i, c := range s.components {
		checks[c.name] = results[i]
		if c.storage {
			storage++
		}
		if results[i] == CheckError {
			failed++
			if c.storage {
				storageFailed++
			}
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case storage > 0 && storageFailed == storage:
		status = Unhealthy
	case storage == 0 && failed == len(s.components):
		status = Unhealthy
	default:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
