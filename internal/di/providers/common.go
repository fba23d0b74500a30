package providers

import (
	"context"
	"time"
)

// shutdownTimeout bounds the graceful shutdown of each service.
const shutdownTimeout = 30 * time.Second

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
