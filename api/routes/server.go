package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// ServeOps runs the ops listener until ctx is cancelled.
func ServeOps(ctx context.Context, port string, handler http.Handler, logg *logger.Logger) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logg.Info(logg.WithField(ctx, "addr", server.Addr), "ops server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
