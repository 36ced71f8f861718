package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/refraction-networking/wasip3/internal/log"
)

// Runtime is a wazero runtime with WASI preview1 and the body channel host
// module instantiated.
type Runtime struct {
	config  *Config
	logger  *log.Logger
	runtime wazero.Runtime
	host    *Host
}

// NewRuntime creates a Runtime. A nil config uses every default.
func NewRuntime(ctx context.Context, config *Config) (*Runtime, error) {
	config = config.Clone()
	if config == nil {
		config = &Config{}
	}
	logger := config.LoggerOrDefault()

	r := wazero.NewRuntimeWithConfig(ctx, config.RuntimeConfigFactoryOrDefault().GetConfig())
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("host: instantiating wasi_snapshot_preview1: %w", err)
	}

	h := NewHost(logger)
	name := config.ModuleNameOrDefault()
	if _, err := h.Instantiate(ctx, r, name); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("host: instantiating host module %q: %w", name, err)
	}
	log.LInfof(logger, "host module %q ready", name)

	return &Runtime{
		config:  config,
		logger:  logger,
		runtime: r,
		host:    h,
	}, nil
}

// Host returns the handle tables shared by every guest of r.
func (r *Runtime) Host() *Host {
	return r.host
}

// InstantiateGuest compiles and instantiates a guest module.
func (r *Runtime) InstantiateGuest(ctx context.Context, bin []byte) (api.Module, error) {
	compiled, err := r.runtime.CompileModule(ctx, bin)
	if err != nil {
		log.LErrorf(r.logger, "compiling guest: %v", err)
		return nil, fmt.Errorf("host: compiling guest: %w", err)
	}
	mod, err := r.runtime.InstantiateModule(ctx, compiled, r.config.ModuleConfigFactoryOrDefault().GetConfig())
	if err != nil {
		log.LErrorf(r.logger, "instantiating guest: %v", err)
		return nil, fmt.Errorf("host: instantiating guest: %w", err)
	}
	return mod, nil
}

// Module returns an instantiated module by name, nil if there is none.
func (r *Runtime) Module(name string) api.Module {
	return r.runtime.Module(name)
}

// Close closes every module of r. Channel ends still held for guests are
// left to their peers.
func (r *Runtime) Close(ctx context.Context) error {
	if n := r.host.Len(); n > 0 {
		log.LWarnf(r.logger, "closing runtime with %d channel ends still held", n)
	}
	return r.runtime.Close(ctx)
}
