package lifecycle

import (
	"context"

	"github.com/brianndofor/cloudguard/internal/credential"
	"golang.org/x/sync/errgroup"
)

const DefaultSyncConcurrency = 4

// Outcome is the result of one service in a batch sync.
type Outcome struct {
	Service string
	Result  Result
	Err     error
}

// SyncGuarded runs one sync under flight.
func (e *Engine) SyncGuarded(ctx context.Context, flight *Flight, service string, cred credential.Credential) (Result, error) {
	done, err := flight.Begin(service)
	if err != nil {
		return Result{}, err
	}
	defer done()
	return e.Sync(ctx, service, cred)
}

// SyncAll syncs every service with at most limit in flight. A failure on
// one service does not stop the others; outcomes keep the input order.
func (e *Engine) SyncAll(ctx context.Context, flight *Flight, services []string, cred credential.Credential, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultSyncConcurrency
	}
	outcomes := make([]Outcome, len(services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, service := range services {
		i, service := i, service
		g.Go(func() error {
			res, err := e.SyncGuarded(gctx, flight, service, cred)
			outcomes[i] = Outcome{Service: service, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
