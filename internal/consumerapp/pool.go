package consumerapp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Pool runs the consumer's fixed-size dispatch loop: each tick, it leases
// up to maxPerTick jobs and dispatches them concurrently, mirroring the
// teacher's WorkerPool but polling a remote gateway instead of a local
// database.
type Pool struct {
	client     *Client
	tick       time.Duration
	maxPerTick int
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool constructs a Pool. Call Run to start it; call Stop to shut it down.
func NewPool(client *Client, tick time.Duration, maxPerTick int, timeout time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{client: client, tick: tick, maxPerTick: maxPerTick, timeout: timeout, ctx: ctx, cancel: cancel}
}

// Run blocks, ticking until Stop is called.
func (p *Pool) Run() {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.wg.Wait()
			return
		case <-ticker.C:
			p.runTick()
		}
	}
}

// Stop cancels the loop's context and returns at once; Run returns after
// in-flight dispatches have finished.
func (p *Pool) Stop() {
	p.cancel()
}

func (p *Pool) runTick() {
	for i := 0; i < p.maxPerTick; i++ {
		res, err := p.client.Dequeue(p.ctx)
		if err != nil {
			slog.Error("dequeue failed", "error", err)
			return
		}
		if res.Job == nil {
			return
		}

		p.wg.Add(1)
		go p.dispatch(*res.Job)
	}
}

func (p *Pool) dispatch(job leasedJob) {
	defer p.wg.Done()

	slog.Info("dispatching job", "id", job.ID, "type", job.Type, "target", job.Target)
	result, err := Dispatch(p.ctx, job.Type, job.Target, p.timeout)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			slog.Debug("skipping job with no executor", "id", job.ID, "type", job.Type)
			return
		}
		slog.Warn("job dispatch failed", "id", job.ID, "error", err)
		if reportErr := p.client.Fail(p.ctx, job.ID, err.Error()); reportErr != nil {
			slog.Error("failed to report failure", "id", job.ID, "error", reportErr)
		}
		return
	}

	if err := p.client.Complete(p.ctx, job.ID, result); err != nil {
		slog.Error("failed to report completion", "id", job.ID, "error", err)
	}
}
