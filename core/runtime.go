package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"syscall"
	"time"

	"github.com/encodeous/rayon/link"
	"github.com/encodeous/rayon/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func readNodeConfig(nodePath string) (*state.NodeCfg, error) {
	var nodeCfg state.NodeCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, err
	}
	return &nodeCfg, nil
}

// Bootstrap manages the lifetime of the whole daemon. Configuration errors
// are fatal here, before any loop starts.
func Bootstrap(configPath, logPath string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	nodeCfg, err := readNodeConfig(configPath)
	if err != nil {
		panic(err)
	}
	if logPath != "" {
		nodeCfg.LogPath = logPath
	}
	err = state.NodeConfigValidator(nodeCfg)
	if err != nil {
		panic(err)
	}
	err = Start(*nodeCfg, level, nil, nil)
	if err != nil {
		panic(err)
	}
}

// Start runs the node until its context is cancelled. A nil layer means the
// UDP link layer from the config; tests inject an in-memory one. initState,
// when non-nil, receives the state handle before the loop starts.
func Start(ncfg state.NodeCfg, logLevel slog.Level, layer link.Layer, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(env *state.State) error, 128)

	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: ncfg.Id,
		}))

	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			cancel(err)
			return err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			cancel(err)
			return err
		}
		defer f.Close()
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	logger := slog.New(slogmulti.Fanout(handlers...))

	if ncfg.CtlPath == "" {
		ncfg.CtlPath = state.DefaultCtlPath
	}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         ncfg,
			Log:             logger,
		},
	}
	if initState != nil {
		*initState = &s
	}

	if layer == nil {
		var err error
		layer, err = link.NewUDP(ncfg, logger)
		if err != nil {
			cancel(err)
			return err
		}
	}

	s.Log.Info("init modules")
	err := initModules(&s, layer)
	if err != nil {
		cancel(err)
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete")

	s.Log.Info("Rayon has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, layer link.Layer) error {
	var modules []state.Module
	modules = append(modules, &Router{Link: layer})
	modules = append(modules, &CtlServer{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			if elapsed > time.Millisecond*50 {
				s.Log.Warn("dispatch took a long time!", "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	// the channel stays set after close: a straggler send panics and is
	// absorbed by Dispatch's recover, where a send on a nil channel would
	// block its goroutine forever
	close(s.DispatchChannel)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
