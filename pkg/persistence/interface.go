package persistence

// IVerificationCache stores the outcome of verifications that completed with a
// definite answer so repeated requests skip the curve operations.
// All implementations must be thread-safe as the server handles requests concurrently.
type IVerificationCache interface {
	// Get returns the cached result for key.
	// Returns nil if the key is unknown, error only on storage failure.
	Get(key string) (*CachedResult, error)

	// Put stores a result under key, overwriting any previous value.
	Put(key string, result *CachedResult) error

	// Close releases the underlying storage. Idempotent.
	Close() error

	// HealthCheck verifies the cache is operational
	HealthCheck() error
}
