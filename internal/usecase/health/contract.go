package health

import "context"

// DBPinger checks catalog store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexChecker reports whether the vector index is servable.
type IndexChecker interface {
	Ready() error
}
