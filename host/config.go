package host

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/tetratelabs/wazero"

	"github.com/refraction-networking/wasip3/internal/log"
)

// Config configures a Runtime.
type Config struct {
	// Logger receives the host's diagnostics. The default logger is used
	// when nil.
	Logger *log.Logger

	// ModuleName is the name guests import the body channel functions
	// from. DefaultModuleName is used when empty.
	ModuleName string

	// RuntimeConfigFactory and ModuleConfigFactory are for advanced use
	// cases and debugging only.
	RuntimeConfigFactory *RuntimeConfigFactory
	ModuleConfigFactory  *ModuleConfigFactory
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	return &Config{
		Logger:               c.Logger,
		ModuleName:           c.ModuleName,
		RuntimeConfigFactory: c.RuntimeConfigFactory.Clone(),
		ModuleConfigFactory:  c.ModuleConfigFactory.Clone(),
	}
}

func (c *Config) LoggerOrDefault() *log.Logger {
	if c == nil || c.Logger == nil {
		return log.Component("wasip3-host")
	}
	return c.Logger
}

func (c *Config) ModuleNameOrDefault() string {
	if c == nil || c.ModuleName == "" {
		return DefaultModuleName
	}
	return c.ModuleName
}

func (c *Config) RuntimeConfigFactoryOrDefault() *RuntimeConfigFactory {
	if c == nil || c.RuntimeConfigFactory == nil {
		return NewRuntimeConfigFactory()
	}
	return c.RuntimeConfigFactory
}

func (c *Config) ModuleConfigFactoryOrDefault() *ModuleConfigFactory {
	if c == nil || c.ModuleConfigFactory == nil {
		return NewModuleConfigFactory()
	}
	return c.ModuleConfigFactory
}

// ModuleConfigFactory builds the wazero.ModuleConfig every guest is
// instantiated with.
type ModuleConfigFactory struct {
	moduleConfig wazero.ModuleConfig
}

// NewModuleConfigFactory returns a factory giving guests a clock, a
// sleep and crypto/rand as their random source.
func NewModuleConfigFactory() *ModuleConfigFactory {
	return &ModuleConfigFactory{
		moduleConfig: wazero.NewModuleConfig().WithSysWalltime().WithSysNanotime().WithSysNanosleep().WithRandSource(rand.Reader),
	}
}

func (mcf *ModuleConfigFactory) Clone() *ModuleConfigFactory {
	if mcf == nil {
		return nil
	}
	return &ModuleConfigFactory{moduleConfig: mcf.moduleConfig}
}

// GetConfig returns the latest wazero.ModuleConfig.
func (mcf *ModuleConfigFactory) GetConfig() wazero.ModuleConfig {
	if mcf == nil {
		panic("host: GetConfig: mcf is nil")
	}
	return mcf.moduleConfig
}

// SetArgv sets the arguments of the guest.
func (mcf *ModuleConfigFactory) SetArgv(argv []string) {
	mcf.moduleConfig = mcf.moduleConfig.WithArgs(argv...)
}

// InheritArgv passes os.Args to the guest.
func (mcf *ModuleConfigFactory) InheritArgv() {
	mcf.SetArgv(os.Args)
}

// SetEnv sets environment variables of the guest. keys and values must
// have the same length.
func (mcf *ModuleConfigFactory) SetEnv(keys, values []string) {
	if len(keys) != len(values) {
		panic("host: SetEnv: keys and values must have the same length")
	}

	for i := range keys {
		mcf.moduleConfig = mcf.moduleConfig.WithEnv(keys[i], values[i])
	}
}

func (mcf *ModuleConfigFactory) SetStdin(r io.Reader) {
	mcf.moduleConfig = mcf.moduleConfig.WithStdin(r)
}

func (mcf *ModuleConfigFactory) InheritStdin() {
	mcf.moduleConfig = mcf.moduleConfig.WithStdin(os.Stdin)
}

func (mcf *ModuleConfigFactory) SetStdout(w io.Writer) {
	mcf.moduleConfig = mcf.moduleConfig.WithStdout(w)
}

func (mcf *ModuleConfigFactory) InheritStdout() {
	mcf.moduleConfig = mcf.moduleConfig.WithStdout(os.Stdout)
}

func (mcf *ModuleConfigFactory) SetStderr(w io.Writer) {
	mcf.moduleConfig = mcf.moduleConfig.WithStderr(w)
}

func (mcf *ModuleConfigFactory) InheritStderr() {
	mcf.moduleConfig = mcf.moduleConfig.WithStderr(os.Stderr)
}

// RuntimeConfigFactory builds the wazero.RuntimeConfig of a Runtime.
type RuntimeConfigFactory struct {
	runtimeConfig    wazero.RuntimeConfig
	compilationCache wazero.CompilationCache
}

// NewRuntimeConfigFactory returns a factory whose runtimes close guests
// once the context of a call is done.
func NewRuntimeConfigFactory() *RuntimeConfigFactory {
	return &RuntimeConfigFactory{
		runtimeConfig: wazero.NewRuntimeConfig().WithCloseOnContextDone(true),
	}
}

func (rcf *RuntimeConfigFactory) Clone() *RuntimeConfigFactory {
	if rcf == nil {
		return nil
	}
	return &RuntimeConfigFactory{
		runtimeConfig:    rcf.runtimeConfig,
		compilationCache: rcf.compilationCache,
	}
}

// GetConfig returns the latest wazero.RuntimeConfig.
func (rcf *RuntimeConfigFactory) GetConfig() wazero.RuntimeConfig {
	if rcf == nil {
		panic("host: GetConfig: rcf is nil")
	}
	if rcf.compilationCache != nil {
		return rcf.runtimeConfig.WithCompilationCache(rcf.compilationCache)
	}
	return rcf.runtimeConfig
}

// Interpreter makes guests run in the interpreter, which is slower but
// available on every platform.
func (rcf *RuntimeConfigFactory) Interpreter() {
	rcf.runtimeConfig = wazero.NewRuntimeConfigInterpreter().WithCloseOnContextDone(true)
}

// Compiler makes guests run compiled. Runtime creation fails on platforms
// the compiler does not support.
func (rcf *RuntimeConfigFactory) Compiler() {
	rcf.runtimeConfig = wazero.NewRuntimeConfigCompiler().WithCloseOnContextDone(true)
}

// SetCloseOnContextDone controls whether a guest is closed once the context
// of a call into it is done. It is on by default.
func (rcf *RuntimeConfigFactory) SetCloseOnContextDone(close bool) {
	rcf.runtimeConfig = rcf.runtimeConfig.WithCloseOnContextDone(close)
}

// SetCompilationCache shares compiled guests between runtimes.
func (rcf *RuntimeConfigFactory) SetCompilationCache(cache wazero.CompilationCache) {
	rcf.compilationCache = cache
}
