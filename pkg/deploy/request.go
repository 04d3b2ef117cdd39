// Package deploy implements the drop-and-poll handshake that hands an artifact to the engine.
//
// An artifact is placed at {deployDir}/{application}/{artifactFileName}. The engine picks it
// up asynchronously and writes {artifact}.deployed once it is done, logging to
// {artifact}.deploymentLog on the way. Deployers poll for the flag within a bounded timeout.
package deploy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	pcontext "github.com/ivyci/enginectl/pkg/context"
	"github.com/ivyci/enginectl/pkg/utils"
)

// Defaults applied by NewRequest
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// RequestSpec holds the resolved inputs of a deployment
type RequestSpec struct {
	// ID identifies the deployment in logs and history. Generated when empty.
	ID string
	// Source is the packaged artifact (archive or directory).
	Source string
	// DeployDir is the directory the engine watches.
	DeployDir string
	// Application is the sub directory of DeployDir the artifact is dropped into.
	Application string
	// Options is the options payload placed beside the artifact. Nil for none.
	Options []byte
	// OptionsFormat is the file extension of the options sibling. Defaults to yaml.
	OptionsFormat string
	Timeout       time.Duration
	PollInterval  time.Duration
}

// Request is an immutable, validated deployment request
type Request struct {
	id            string
	source        string
	deployDir     string
	application   string
	options       []byte
	optionsFormat string
	timeout       time.Duration
	pollInterval  time.Duration
}

// NewRequest validates spec and returns a Request. It fails with ErrPreconditionFailed
// when the source does not exist, the deploy directory does not exist, or the
// application is not a single path element.
func NewRequest(spec RequestSpec) (*Request, error) {
	if spec.Source == "" {
		return nil, fmt.Errorf("%w: no file to deploy", ErrPreconditionFailed)
	}
	if spec.DeployDir == "" {
		return nil, fmt.Errorf("%w: no deploy directory", ErrPreconditionFailed)
	}
	if err := validApplication(spec.Application); err != nil {
		return nil, err
	}

	req := &Request{
		id:            spec.ID,
		source:        filepath.Clean(spec.Source),
		deployDir:     filepath.Clean(spec.DeployDir),
		application:   spec.Application,
		optionsFormat: strings.TrimPrefix(spec.OptionsFormat, "."),
		timeout:       spec.Timeout,
		pollInterval:  spec.PollInterval,
	}
	if spec.Options != nil {
		req.options = append([]byte(nil), spec.Options...)
	}
	if req.id == "" {
		req.id = pcontext.NewDeploymentID()
	}
	if req.optionsFormat == "" {
		req.optionsFormat = DefaultOptionsFormat
	}
	if req.timeout <= 0 {
		req.timeout = DefaultTimeout
	}
	if req.pollInterval <= 0 {
		req.pollInterval = DefaultPollInterval
	}

	if err := req.checkPreconditions(); err != nil {
		return nil, err
	}
	return req, nil
}

func validApplication(app string) error {
	if app == "" {
		return fmt.Errorf("%w: no application name", ErrPreconditionFailed)
	}
	if app == "." || app == ".." || strings.ContainsAny(app, `/\`) {
		return fmt.Errorf("%w: invalid application name %q", ErrPreconditionFailed, app)
	}
	return nil
}

// checkPreconditions runs again at deploy time since the filesystem may have changed
func (r *Request) checkPreconditions() error {
	if !utils.Exists(r.source) {
		return fmt.Errorf("%w: file '%s' does not exist", ErrPreconditionFailed, r.source)
	}
	if !utils.DirectoryExists(r.deployDir) {
		return fmt.Errorf("%w: deploy directory '%s' does not exist", ErrPreconditionFailed, r.deployDir)
	}
	return nil
}

// ID returns the deployment identifier
func (r *Request) ID() string { return r.id }

// Source returns the artifact path
func (r *Request) Source() string { return r.source }

// DeployDir returns the watched directory
func (r *Request) DeployDir() string { return r.deployDir }

// Application returns the target application name
func (r *Request) Application() string { return r.application }

// Timeout returns the acknowledgment budget
func (r *Request) Timeout() time.Duration { return r.timeout }

// PollInterval returns the marker polling interval
func (r *Request) PollInterval() time.Duration { return r.pollInterval }

// HasOptions reports whether an options payload is delivered with the artifact
func (r *Request) HasOptions() bool { return r.options != nil }

// Options returns a copy of the options payload
func (r *Request) Options() []byte {
	if r.options == nil {
		return nil
	}
	return append([]byte(nil), r.options...)
}

// OptionsFormat returns the extension of the options sibling
func (r *Request) OptionsFormat() string { return r.optionsFormat }

// Target returns the artifact path inside the drop directory
func (r *Request) Target() string {
	return filepath.Join(r.deployDir, r.application, filepath.Base(r.source))
}

// RelativeTarget returns Target relative to the deploy directory, as the engine reports it
func (r *Request) RelativeTarget() string {
	return filepath.Join(r.application, filepath.Base(r.source))
}

// Markers returns the companion files of Target
func (r *Request) Markers() Markers {
	return MarkersFor(r.Target())
}

// OptionsPath returns the options sibling of Target
func (r *Request) OptionsPath() string {
	return r.Markers().Options(r.optionsFormat)
}
