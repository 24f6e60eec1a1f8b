package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Runner runs detached background work. Jobs share a base context that is
// cancelled by Shutdown; a job's error or panic is logged and never reaches
// the code that started it.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{ctx: ctx, cancel: cancel}
}

func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				log.Error().Str("job", name).Err(fmt.Errorf("panic: %v", p)).Msg("background job panicked")
			}
		}()

		if err := fn(r.ctx); err != nil {
			log.Error().Str("job", name).Err(err).Msg("background job failed")
		}
	}()
}

// Wait blocks until every started job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels the base context and waits for jobs to return, or for
// ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
