package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// jobTimeout bounds a single scheduled job run.
	jobTimeout = 10 * time.Minute

	// authRequestsPerMinute limits login and registration attempts per client IP.
	authRequestsPerMinute = 20
	authBurst             = 5
)
