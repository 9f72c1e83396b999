// Package health aggregates component health checks.
package health

import "context"

// StorePinger checks Redis availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker checks that the knowledge search index exists.
type IndexChecker interface {
	IndexExists(ctx context.Context, name string) (bool, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	index     IndexChecker
	indexName string
	embedding EmbeddingChecker
}

// New creates a Service. index and embedding can be nil.
func New(store StorePinger, index IndexChecker, indexName string, embedding EmbeddingChecker) *Service {
	return &Service{store: store, index: index, indexName: indexName, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["redis"] = CheckError
	} else {
		checks["redis"] = CheckOK
	}

	if s.index != nil {
		exists, err := s.index.IndexExists(ctx, s.indexName)
		if err != nil || !exists {
			checks["search_index"] = CheckError
		} else {
			checks["search_index"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
