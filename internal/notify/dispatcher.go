package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultDispatchTimeout = 5 * time.Second

// Job is one best-effort side effect.
type Job func(ctx context.Context) error

// Dispatcher runs side effects off the request path. Jobs of one dispatch run
// concurrently under a shared timeout; failures are logged and never reported
// back to the caller.
type Dispatcher struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher whose jobs are cancelled after timeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{timeout: timeout}
}

// Dispatch starts jobs in the background. ctx only contributes its values
// (trace span, request id); its cancellation does not stop the jobs.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, jobs ...Job) {
	if d == nil || len(jobs) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		var g errgroup.Group
		for i, job := range jobs {
			if job == nil {
				continue
			}
			g.Go(func() error {
				if err := job(runCtx); err != nil {
					log.WithError(err).WithField("dispatch", name).WithField("job", i).Warn("notify: side effect failed")
					return err
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until all dispatched jobs have finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
