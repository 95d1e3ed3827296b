package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type Module interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the main loop Goroutine
type State struct {
	*Env
	Modules map[string]Module
	*RouterState
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	NodeCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Started  atomic.Bool
	Stopping atomic.Bool
}

type Pair[Ty1, Ty2 any] struct {
	V1 Ty1
	V2 Ty2
}
