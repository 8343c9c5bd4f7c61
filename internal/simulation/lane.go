// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// laneItem is a unit of work submitted to a lane.
type laneItem struct {
	fn     func() error
	ctx    context.Context
	result chan<- error
}

// lane is the single writer for session state. Functions submitted via do
// run one at a time in FIFO order on a background goroutine, so the liveness
// check and the mutation it guards are atomic with respect to each other.
//
// Work run on the lane must never call do itself.
type lane struct {
	log     *slog.Logger
	queue   chan laneItem
	done    chan struct{}
	closing chan struct{}

	once sync.Once
}

func newLane(log *slog.Logger) *lane {
	l := &lane{
		log:     log,
		queue:   make(chan laneItem, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *lane) run() {
	defer close(l.done)
	for {
		select {
		case w := <-l.queue:
			l.execute(w)
		case <-l.closing:
			// Drain what was accepted before Close.
			for {
				select {
				case w := <-l.queue:
					l.execute(w)
				default:
					return
				}
			}
		}
	}
}

func (l *lane) execute(w laneItem) {
	if err := w.ctx.Err(); err != nil {
		w.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("session lane panic recovered",
					"panic", r,
					"stack", string(debug.Stack()))
				err = sxerr.Errorf(sxerr.CodeServerInternalFailure, "lane panic: %v", r)
			}
		}()
		err = w.fn()
	}()

	w.result <- err
}

// do runs fn on the lane and blocks until it completes. If ctx is done
// before fn starts, ctx.Err() is returned and fn is not run. Once fn has
// started its result is returned regardless of ctx.
func (l *lane) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-l.closing:
		return sxerr.New(sxerr.CodeSimulationLaneClosed, "session lane is closed")
	default:
	}

	result := make(chan error, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closing:
		return sxerr.New(sxerr.CodeSimulationLaneClosed, "session lane is closed")
	case l.queue <- laneItem{fn: fn, ctx: ctx, result: result}:
	}

	// Queued work reports fn's result, or ctx.Err() if ctx ended while it
	// waited. An item that slipped in after the final drain never runs.
	select {
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return sxerr.New(sxerr.CodeSimulationLaneClosed, "session lane is closed")
		}
	}
}

// close stops accepting work and waits for queued work to finish.
// It is idempotent.
func (l *lane) close() {
	l.once.Do(func() {
		close(l.closing)
		<-l.done
	})
}
