package core

import "context"

// ShutdownFunc is a cleanup function executed during graceful shutdown.
// The context carries the shutdown deadline; functions should return
// promptly when it is cancelled.
type ShutdownFunc func(ctx context.Context) error
