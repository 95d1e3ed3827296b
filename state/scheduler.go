package state

import (
	"fmt"
	"time"
)

// Dispatch submits fun to run on the main loop goroutine without waiting for
// it to complete. Safe to call while the node is shutting down: a send on the
// closed dispatch channel is absorbed and recorded as the cancel cause
// instead of crashing the calling goroutine.
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	e.DispatchChannel <- fun
}

// DispatchWait submits fun to run on the main loop goroutine and blocks until
// it has completed, or until the node shuts down.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error])
	e.DispatchChannel <- func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return err
	}
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

// RepeatTask dispatches fun immediately and then every delay, until the node
// context is cancelled. The router's advertisement and staleness timers run
// on this.
func (e *Env) RepeatTask(fun func(*State) error, delay time.Duration) {
	go func() {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for {
			e.Dispatch(fun)
			select {
			case <-ticker.C:
				if e.Context.Err() != nil {
					return
				}
			case <-e.Context.Done():
				return
			}
		}
	}()
}
