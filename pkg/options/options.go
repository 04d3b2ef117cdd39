// Package options builds the deployment options payload placed beside an artifact.
//
// The payload is YAML understood by the engine. It is either generated from typed
// values, where only settings that differ from the engine defaults are written, or
// rendered from a user template with ${key} placeholders.
package options

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CleanupMode controls what happens to application configuration around a deployment
type CleanupMode string

const (
	CleanupDisabled     CleanupMode = "DISABLED"
	CleanupRemoveUnused CleanupMode = "REMOVE_UNUSED"
	CleanupRemoveAll    CleanupMode = "REMOVE_ALL"
)

// TargetState is the state of the deployed versions after the deployment
type TargetState string

const (
	StateActiveAndReleased TargetState = "ACTIVE_AND_RELEASED"
	StateActive            TargetState = "ACTIVE"
	StateInactive          TargetState = "INACTIVE"
)

// FileFormat is the on-engine format of the deployed project
type FileFormat string

const (
	FormatAuto     FileFormat = "AUTO"
	FormatExpanded FileFormat = "EXPANDED"
)

// Target version keywords. Any other non-empty value is a version range.
const (
	VersionAuto     = "AUTO"
	VersionReleased = "RELEASED"
)

// Property keys usable as ${key} placeholders in templates
const (
	KeyTestUsers       = "deploy.test.users"
	KeyConfigOverwrite = "deploy.configuration.overwrite"
	KeyConfigCleanup   = "deploy.configuration.cleanup"
	KeyTargetVersion   = "deploy.target.version"
	KeyTargetState     = "deploy.target.state"
	KeyTargetFormat    = "deploy.target.file.format"
)

var (
	// ErrInvalidOption is returned for values the engine would reject
	ErrInvalidOption = errors.New("invalid deployment option")
	// ErrInvalidTemplate is returned when a rendered template is not valid YAML
	ErrInvalidTemplate = errors.New("invalid options template")
)

// Configuration groups the settings about application configuration
type Configuration struct {
	Overwrite bool        `yaml:"overwrite,omitempty"`
	Cleanup   CleanupMode `yaml:"cleanup,omitempty"`
}

// Target groups the settings about the deployed version
type Target struct {
	Version    string      `yaml:"version,omitempty"`
	State      TargetState `yaml:"state,omitempty"`
	FileFormat FileFormat  `yaml:"fileFormat,omitempty"`
}

// Payload is the typed form of the options file
type Payload struct {
	DeployTestUsers bool           `yaml:"deployTestUsers,omitempty"`
	Configuration   *Configuration `yaml:"configuration,omitempty"`
	Target          *Target        `yaml:"target,omitempty"`
}

// Settings are the flat option values as they come from configuration
type Settings struct {
	TestUsers        bool   `yaml:"test_users" json:"test_users" mapstructure:"test_users"`
	ConfigOverwrite  bool   `yaml:"config_overwrite" json:"config_overwrite" mapstructure:"config_overwrite"`
	ConfigCleanup    string `yaml:"config_cleanup" json:"config_cleanup" mapstructure:"config_cleanup"`
	TargetVersion    string `yaml:"target_version" json:"target_version" mapstructure:"target_version"`
	TargetState      string `yaml:"target_state" json:"target_state" mapstructure:"target_state"`
	TargetFileFormat string `yaml:"target_file_format" json:"target_file_format" mapstructure:"target_file_format"`
}

// DefaultSettings returns the engine defaults
func DefaultSettings() Settings {
	return Settings{
		ConfigCleanup:    string(CleanupDisabled),
		TargetVersion:    VersionAuto,
		TargetState:      string(StateActiveAndReleased),
		TargetFileFormat: string(FormatAuto),
	}
}

// withDefaults fills empty enum values
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ConfigCleanup == "" {
		s.ConfigCleanup = d.ConfigCleanup
	}
	if s.TargetVersion == "" {
		s.TargetVersion = d.TargetVersion
	}
	if s.TargetState == "" {
		s.TargetState = d.TargetState
	}
	if s.TargetFileFormat == "" {
		s.TargetFileFormat = d.TargetFileFormat
	}
	return s
}

// Validate checks the enum values. Empty values mean "default".
func (s Settings) Validate() error {
	s = s.withDefaults()

	switch CleanupMode(s.ConfigCleanup) {
	case CleanupDisabled, CleanupRemoveUnused, CleanupRemoveAll:
	default:
		return fmt.Errorf("%w: configuration cleanup %q (expected DISABLED, REMOVE_UNUSED or REMOVE_ALL)", ErrInvalidOption, s.ConfigCleanup)
	}
	switch TargetState(s.TargetState) {
	case StateActiveAndReleased, StateActive, StateInactive:
	default:
		return fmt.Errorf("%w: target state %q (expected ACTIVE_AND_RELEASED, ACTIVE or INACTIVE)", ErrInvalidOption, s.TargetState)
	}
	switch FileFormat(s.TargetFileFormat) {
	case FormatAuto, FormatExpanded:
	default:
		return fmt.Errorf("%w: target file format %q (expected AUTO or EXPANDED)", ErrInvalidOption, s.TargetFileFormat)
	}
	if strings.TrimSpace(s.TargetVersion) == "" {
		return fmt.Errorf("%w: empty target version", ErrInvalidOption)
	}
	return nil
}

// Payload converts s into a payload that only carries non-default settings
func (s Settings) Payload() Payload {
	s = s.withDefaults()
	d := DefaultSettings()

	p := Payload{DeployTestUsers: s.TestUsers}

	cfg := Configuration{Overwrite: s.ConfigOverwrite}
	if s.ConfigCleanup != d.ConfigCleanup {
		cfg.Cleanup = CleanupMode(s.ConfigCleanup)
	}
	if cfg != (Configuration{}) {
		p.Configuration = &cfg
	}

	target := Target{}
	if s.TargetVersion != d.TargetVersion {
		target.Version = s.TargetVersion
	}
	if s.TargetState != d.TargetState {
		target.State = TargetState(s.TargetState)
	}
	if s.TargetFileFormat != d.TargetFileFormat {
		target.FileFormat = FileFormat(s.TargetFileFormat)
	}
	if target != (Target{}) {
		p.Target = &target
	}
	return p
}

// Properties returns the placeholder values of s for template rendering
func (s Settings) Properties() map[string]string {
	s = s.withDefaults()
	return map[string]string{
		KeyTestUsers:       strconv.FormatBool(s.TestUsers),
		KeyConfigOverwrite: strconv.FormatBool(s.ConfigOverwrite),
		KeyConfigCleanup:   s.ConfigCleanup,
		KeyTargetVersion:   s.TargetVersion,
		KeyTargetState:     s.TargetState,
		KeyTargetFormat:    s.TargetFileFormat,
	}
}

// IsEmpty reports whether the payload carries no setting
func (p Payload) IsEmpty() bool {
	return !p.DeployTestUsers && p.Configuration == nil && p.Target == nil
}

// Marshal renders p as YAML. An empty payload yields nil so no options file is written.
func (p Payload) Marshal() ([]byte, error) {
	if p.IsEmpty() {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes an options file
func Parse(data []byte) (Payload, error) {
	var p Payload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return p, nil
}

var placeholder = regexp.MustCompile(`\$\{([^${}]+)\}`)

// Fill replaces ${key} placeholders with props[key]. Unknown placeholders are left as they are.
func Fill(template []byte, props map[string]string) []byte {
	return placeholder.ReplaceAllFunc(template, func(m []byte) []byte {
		key := strings.TrimSpace(string(m[2 : len(m)-1]))
		if v, ok := props[key]; ok {
			return []byte(v)
		}
		return m
	})
}

// Unresolved lists the placeholders Fill could not substitute, sorted and unique
func Unresolved(rendered []byte) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range placeholder.FindAllSubmatch(rendered, -1) {
		key := strings.TrimSpace(string(m[1]))
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// FormatOf returns the options format for a template path, "yaml" when it has no extension
func FormatOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "yaml"
	}
	return strings.ToLower(ext)
}

// Rendered is a resolved options payload
type Rendered struct {
	Data   []byte
	Format string
	// Unresolved placeholders left in a rendered template
	Unresolved []string
}

// Render resolves the options for one deployment. When templatePath is set the
// template is filled with the properties of s plus extra, and the settings
// themselves are ignored. Otherwise a payload is generated from s; when all
// settings are defaults Data is nil.
func Render(templatePath string, s Settings, extra map[string]string) (Rendered, error) {
	if templatePath == "" {
		if err := s.Validate(); err != nil {
			return Rendered{}, err
		}
		data, err := s.Payload().Marshal()
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{Data: data, Format: "yaml"}, nil
	}

	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to read options template: %w", err)
	}

	props := s.Properties()
	for k, v := range extra {
		props[k] = v
	}
	data := Fill(tmpl, props)

	format := FormatOf(templatePath)
	switch format {
	case "yaml", "yml", "json":
		var probe interface{}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return Rendered{}, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, templatePath, err)
		}
	}
	return Rendered{Data: data, Format: format, Unresolved: Unresolved(data)}, nil
}
