// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/engine"
	"github.com/ivyci/enginectl/pkg/options"
	"github.com/ivyci/enginectl/pkg/types"
)

// Config file lookup
const (
	FileName  = "enginectl"
	EnvPrefix = "ENGINECTL"
)

// Defaults for the engine lifecycle
const (
	DefaultStartTimeout = 5 * time.Minute
	DefaultStopTimeout  = 2 * time.Minute
	DefaultDeployDir    = "deploy"
	DefaultApplication  = "SYSTEM"
)

// Config is the complete enginectl configuration
type Config struct {
	Engine        EngineConfig        `yaml:"engine" mapstructure:"engine"`
	Deploy        DeployConfig        `yaml:"deploy" mapstructure:"deploy"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
	History       HistoryConfig       `yaml:"history" mapstructure:"history"`
	LogLevel      string              `yaml:"log_level" mapstructure:"log_level"`
	LogFile       string              `yaml:"log_file" mapstructure:"log_file"`
}

// EngineConfig describes how the engine process is launched and probed
type EngineConfig struct {
	Dir          string        `yaml:"dir" mapstructure:"dir"`
	Command      string        `yaml:"command" mapstructure:"command"`
	Args         []string      `yaml:"args" mapstructure:"args"`
	StopCommand  string        `yaml:"stop_command" mapstructure:"stop_command"`
	StopArgs     []string      `yaml:"stop_args" mapstructure:"stop_args"`
	URL          string        `yaml:"url" mapstructure:"url"`
	Port         int           `yaml:"port" mapstructure:"port"`
	LockFile     string        `yaml:"lock_file" mapstructure:"lock_file"`
	StartTimeout time.Duration `yaml:"start_timeout" mapstructure:"start_timeout"`
	StopTimeout  time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
	KillWait     time.Duration `yaml:"kill_wait" mapstructure:"kill_wait"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// DeployConfig describes where and how artifacts are dropped
type DeployConfig struct {
	// Dir is relative to Engine.Dir unless absolute.
	Dir          string        `yaml:"dir" mapstructure:"dir"`
	App          string        `yaml:"app" mapstructure:"app"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// OptionsFile is a template that replaces the generated options.
	OptionsFile string            `yaml:"options_file" mapstructure:"options_file"`
	Marker      bool              `yaml:"marker" mapstructure:"marker"`
	Parallel    int               `yaml:"parallel" mapstructure:"parallel"`
	Options     options.Settings  `yaml:"options" mapstructure:"options"`
	Properties  map[string]string `yaml:"properties" mapstructure:"properties"`
	// Skip turns deploy into a no-op
	Skip bool `yaml:"skip" mapstructure:"skip"`
}

// NotificationsConfig toggles desktop notifications
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Sound   bool `yaml:"sound" mapstructure:"sound"`
}

// HistoryConfig locates the deployment ledger
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// GetDefaultConfig returns the configuration used when nothing is set
func (m *Manager) GetDefaultConfig() *Config {
	opts := options.DefaultSettings()
	return &Config{
		Engine: EngineConfig{
			StartTimeout: DefaultStartTimeout,
			StopTimeout:  DefaultStopTimeout,
			KillWait:     engine.DefaultKillWait,
			PollInterval: engine.DefaultPollInterval,
		},
		Deploy: DeployConfig{
			Dir:          DefaultDeployDir,
			App:          DefaultApplication,
			Timeout:      deploy.DefaultTimeout,
			PollInterval: deploy.DefaultPollInterval,
			Parallel:     1,
			Options:      opts,
		},
		Notifications: NotificationsConfig{Enabled: true},
		History:       HistoryConfig{Enabled: true},
		LogLevel:      string(types.LogLevelInfo),
	}
}

// LoadConfig loads configuration from a JSON or YAML file on top of the defaults
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := m.GetDefaultConfig()
	// YAML is a superset of JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return m.validateConfig(cfg)
}

// SetDefaults registers every key with its default so that environment
// variables and flags can override any of them
func (m *Manager) SetDefaults(v *viper.Viper) {
	d := m.GetDefaultConfig()

	v.SetDefault("engine.dir", d.Engine.Dir)
	v.SetDefault("engine.command", d.Engine.Command)
	v.SetDefault("engine.args", d.Engine.Args)
	v.SetDefault("engine.stop_command", d.Engine.StopCommand)
	v.SetDefault("engine.stop_args", d.Engine.StopArgs)
	v.SetDefault("engine.url", d.Engine.URL)
	v.SetDefault("engine.port", d.Engine.Port)
	v.SetDefault("engine.lock_file", d.Engine.LockFile)
	v.SetDefault("engine.start_timeout", d.Engine.StartTimeout)
	v.SetDefault("engine.stop_timeout", d.Engine.StopTimeout)
	v.SetDefault("engine.kill_wait", d.Engine.KillWait)
	v.SetDefault("engine.poll_interval", d.Engine.PollInterval)

	v.SetDefault("deploy.dir", d.Deploy.Dir)
	v.SetDefault("deploy.app", d.Deploy.App)
	v.SetDefault("deploy.timeout", d.Deploy.Timeout)
	v.SetDefault("deploy.poll_interval", d.Deploy.PollInterval)
	v.SetDefault("deploy.options_file", d.Deploy.OptionsFile)
	v.SetDefault("deploy.marker", d.Deploy.Marker)
	v.SetDefault("deploy.parallel", d.Deploy.Parallel)
	v.SetDefault("deploy.skip", d.Deploy.Skip)
	v.SetDefault("deploy.options.test_users", d.Deploy.Options.TestUsers)
	v.SetDefault("deploy.options.config_overwrite", d.Deploy.Options.ConfigOverwrite)
	v.SetDefault("deploy.options.config_cleanup", d.Deploy.Options.ConfigCleanup)
	v.SetDefault("deploy.options.target_version", d.Deploy.Options.TargetVersion)
	v.SetDefault("deploy.options.target_state", d.Deploy.Options.TargetState)
	v.SetDefault("deploy.options.target_file_format", d.Deploy.Options.TargetFileFormat)

	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.sound", d.Notifications.Sound)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
}

// NewViper returns a viper instance that reads enginectl.yaml from dir (or
// the explicit file) and ENGINECTL_* environment variables
func (m *Manager) NewViper(file, dir string) *viper.Viper {
	v := viper.New()
	m.SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		if dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if there is one and decodes the merged settings.
// A missing config file is not an error; the file used is returned for logging.
func (m *Manager) Load(v *viper.Viper) (*Config, string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := m.validateConfig(&cfg); err != nil {
		return nil, "", err
	}
	return &cfg, v.ConfigFileUsed(), nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"engine.start_timeout", cfg.Engine.StartTimeout},
		{"engine.stop_timeout", cfg.Engine.StopTimeout},
		{"engine.kill_wait", cfg.Engine.KillWait},
		{"engine.poll_interval", cfg.Engine.PollInterval},
		{"deploy.timeout", cfg.Deploy.Timeout},
		{"deploy.poll_interval", cfg.Deploy.PollInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	if cfg.Deploy.App == "" || strings.ContainsAny(cfg.Deploy.App, `/\`) {
		return fmt.Errorf("invalid deploy.app: %q", cfg.Deploy.App)
	}
	if cfg.Deploy.Parallel < 1 {
		return fmt.Errorf("deploy.parallel must be at least 1, got %d", cfg.Deploy.Parallel)
	}
	if cfg.Engine.Port < 0 || cfg.Engine.Port > 65535 {
		return fmt.Errorf("invalid engine.port: %d", cfg.Engine.Port)
	}
	if err := cfg.Deploy.Options.Validate(); err != nil {
		return fmt.Errorf("deploy.options: %w", err)
	}

	switch types.LogLevel(strings.ToLower(cfg.LogLevel)) {
	case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		return fmt.Errorf("invalid log_level: %q", cfg.LogLevel)
	}
	return nil
}

// ResolveDeployDir returns the drop directory, joined to the engine directory when relative
func (c *Config) ResolveDeployDir() string {
	dir := c.Deploy.Dir
	if dir == "" {
		dir = DefaultDeployDir
	}
	if filepath.IsAbs(dir) || c.Engine.Dir == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.Engine.Dir, dir)
}

// DeployerName selects the deployer implementation
func (c *Config) DeployerName() string {
	if c.Deploy.Marker {
		return "marker"
	}
	return "file"
}

// ExecConfig builds the process launch settings of the engine
func (c *Config) ExecConfig() engine.ExecConfig {
	cmd := c.Engine.Command
	if cmd != "" && !filepath.IsAbs(cmd) && strings.ContainsRune(cmd, filepath.Separator) && c.Engine.Dir != "" {
		cmd = filepath.Join(c.Engine.Dir, cmd)
	}
	return engine.ExecConfig{
		Command:     cmd,
		Args:        c.Engine.Args,
		Dir:         c.Engine.Dir,
		StopCommand: c.Engine.StopCommand,
		StopArgs:    c.Engine.StopArgs,
	}
}

// Probe builds the readiness probe of the engine. The process itself is always
// checked; URL, port and lock file add further signals.
func (c *Config) Probe(handle engine.ProcessHandle) engine.Probe {
	probes := engine.AnyProbe{}
	if c.Engine.URL != "" {
		probes = append(probes, engine.NewHTTPProbe(c.Engine.URL, engine.DefaultProbeTimeout))
	}
	if c.Engine.Port > 0 {
		probes = append(probes, engine.PortProbe{
			Address: fmt.Sprintf("localhost:%d", c.Engine.Port),
			Timeout: engine.DefaultProbeTimeout,
		})
	}
	if c.Engine.LockFile != "" {
		lock := c.Engine.LockFile
		if !filepath.IsAbs(lock) && c.Engine.Dir != "" {
			lock = filepath.Join(c.Engine.Dir, lock)
		}
		probes = append(probes, engine.LockFileProbe{Path: lock})
	}
	if len(probes) == 0 {
		return engine.PIDProbe{Handle: handle}
	}
	return probes
}

// ControllerConfig returns the engine controller timing
func (c *Config) ControllerConfig() engine.Config {
	return engine.Config{
		PollInterval: c.Engine.PollInterval,
		KillWait:     c.Engine.KillWait,
	}
}

func (m *Manager) validateConfig(cfg *Config) (*Config, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
