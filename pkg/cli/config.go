package cli

import (
	"context"
	"time"

	pcontext "github.com/ivyci/enginectl/pkg/context"
)

// Config holds the global command-line flags
type Config struct {
	ConfigFile string
	// EngineDir overrides engine.dir and is searched for enginectl.yaml
	EngineDir string
	Verbosity string
	StateDir  string
	Version   string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{Version: "dev"}
}

// RuntimeConfig holds runtime configuration for one command
type RuntimeConfig struct {
	Config    *Config
	Context   context.Context
	StartTime time.Time
}

// NewRuntimeConfig creates a runtime configuration whose context carries a
// deployment ID and the operation name
func NewRuntimeConfig(cfg *Config, ctx context.Context, operation string) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}

	return &RuntimeConfig{
		Config:    cfg,
		Context:   pcontext.Enrich(ctx, operation),
		StartTime: time.Now(),
	}
}

// WithTimeout creates a new context with timeout
func (rc *RuntimeConfig) WithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(rc.Context, timeout)
}
