package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/poll"
	"github.com/ivyci/enginectl/pkg/types"
	"github.com/ivyci/enginectl/pkg/utils"
)

// Deployer hands one artifact to the engine and waits for its acknowledgment.
// Deploy never panics and never retries; every failure is reported in the Outcome.
type Deployer interface {
	Name() string
	Deploy(req *Request) Outcome
}

// handshake is the part that differs between deployers: how the drop is signalled
// once the artifact is in place, and how completion is observed.
type handshake struct {
	signal    func(m Markers) error
	completed func(m Markers) bool
	waitingOn func(m Markers) string
}

// dropper implements the steps shared by every deployer
type dropper struct {
	logger logger.Logger
}

func (d *dropper) run(req *Request, hs handshake) Outcome {
	start := time.Now()
	log := d.logger.WithTarget(req.RelativeTarget())
	fields := []logger.Field{logger.WithField("deployment_id", req.ID())}
	markers := req.Markers()
	target := req.Target()

	if err := req.checkPreconditions(); err != nil {
		log.Warn(fmt.Sprintf("Skipping deployment: %v", err), fields...)
		return failed(req, types.OutcomePreconditionFailed, time.Since(start), err)
	}

	if err := utils.EnsureDirectory(filepath.Join(req.DeployDir(), req.Application())); err != nil {
		return ioFailure(req, time.Since(start), "create application directory for", target, err)
	}

	// A flag left by an earlier run would otherwise complete this one immediately,
	// and an artifact left by a timed out run must not meet the new options.
	stale := append([]string{target}, markers.Companions()...)
	if req.HasOptions() {
		stale = append(stale, otherFormats(markers.StaleOptions(), req.OptionsPath())...)
	} else {
		stale = append(stale, markers.StaleOptions()...)
	}
	if err := utils.RemoveIfExists(stale...); err != nil {
		return ioFailure(req, time.Since(start), "clear stale markers of", target, err)
	}

	// The engine must never see the artifact without its options.
	if req.HasOptions() {
		if err := utils.WriteFileAtomic(req.OptionsPath(), req.Options(), 0644); err != nil {
			return ioFailure(req, time.Since(start), "write options", req.OptionsPath(), err)
		}
		log.Debug("Placed deployment options", logger.WithField("file", req.OptionsPath()))
	}

	size, _ := utils.Size(req.Source())
	log.Info(fmt.Sprintf("Uploading file %s", target), append(fields, logger.WithField("size", utils.FormatBytes(size)))...)
	if err := utils.CopyFileAtomic(req.Source(), target); err != nil {
		return ioFailure(req, time.Since(start), "upload", target, err)
	}

	if hs.signal != nil {
		if err := hs.signal(markers); err != nil {
			return ioFailure(req, time.Since(start), "signal deployment of", target, err)
		}
	}

	log.Info(fmt.Sprintf("Waiting up to %s for the engine to deploy", req.Timeout()), fields...)
	forwarder := newLogForwarder(markers.Log(), log)
	res := poll.Until(req.Timeout(), req.PollInterval(), func() bool {
		return hs.completed(markers)
	}, forwarder.poll)
	forwarder.flush()

	if !res.Satisfied {
		err := fmt.Errorf("%w: no '%s' within %s", ErrTimeout, hs.waitingOn(markers), req.Timeout())
		log.Error("Deployment result does not exist", append(fields, logger.WithError(err))...)
		out := failed(req, types.OutcomeTimeout, time.Since(start), err)
		attachLog(&out, markers)
		return out
	}

	return d.complete(req, start, log, fields)
}

// complete reads the engine's verdict and clears the drop directory
func (d *dropper) complete(req *Request, start time.Time, log logger.Logger, fields []logger.Field) Outcome {
	markers := req.Markers()

	engineErr, hasEngineErr := readIfExists(markers.Error())

	cleanup := []string{req.Target(), markers.Deployed(), markers.Trigger()}
	if req.HasOptions() {
		cleanup = append(cleanup, req.OptionsPath())
	}
	if err := utils.RemoveIfExists(cleanup...); err != nil {
		out := ioFailure(req, time.Since(start), "clean up", req.Target(), err)
		attachLog(&out, markers)
		return out
	}

	if hasEngineErr {
		msg := strings.TrimSpace(engineErr)
		log.Error(msg, fields...)
		out := failed(req, types.OutcomeEngineError, time.Since(start),
			fmt.Errorf("%w: deployment of '%s' failed: %s", ErrEngineReported, req.RelativeTarget(), firstLine(msg)))
		attachLog(&out, markers)
		return out
	}

	out := succeeded(req, time.Since(start))
	attachLog(&out, markers)
	log.Success("Deployment finished", append(fields, logger.WithField("elapsed", out.Elapsed.Round(time.Millisecond)))...)
	return out
}

func attachLog(out *Outcome, markers Markers) {
	if content, ok := readIfExists(markers.Log()); ok {
		out.LogPath = markers.Log()
		out.Log = content
	}
}

func readIfExists(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func otherFormats(paths []string, keep string) []string {
	var out []string
	for _, p := range paths {
		if p != keep {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// FileDeployer drops the artifact and waits for the engine's {artifact}.deployed flag
type FileDeployer struct {
	dropper
}

// NewFileDeployer creates the default deployer
func NewFileDeployer(log logger.Logger) *FileDeployer {
	return &FileDeployer{dropper{logger: logger.OrNop(log)}}
}

// Name implements Deployer
func (d *FileDeployer) Name() string { return "file" }

// Deploy implements Deployer
func (d *FileDeployer) Deploy(req *Request) Outcome {
	return d.run(req, handshake{
		completed: func(m Markers) bool { return utils.Exists(m.Deployed()) },
		waitingOn: Markers.Deployed,
	})
}

// MarkerFileDeployer is the legacy handshake: after the drop it writes an empty
// {artifact}.doDeploy trigger and waits for the engine to consume it.
type MarkerFileDeployer struct {
	dropper
}

// NewMarkerFileDeployer creates the legacy deployer
func NewMarkerFileDeployer(log logger.Logger) *MarkerFileDeployer {
	return &MarkerFileDeployer{dropper{logger: logger.OrNop(log)}}
}

// Name implements Deployer
func (d *MarkerFileDeployer) Name() string { return "marker" }

// Deploy implements Deployer
func (d *MarkerFileDeployer) Deploy(req *Request) Outcome {
	return d.run(req, handshake{
		signal: func(m Markers) error {
			return utils.WriteFileAtomic(m.Trigger(), nil, 0644)
		},
		completed: func(m Markers) bool {
			return !utils.Exists(m.Trigger()) || utils.Exists(m.Deployed())
		},
		waitingOn: func(m Markers) string { return "consumption of " + m.Trigger() },
	})
}

// New returns the deployer for name ("file" or "marker")
func New(name string, log logger.Logger) (Deployer, error) {
	switch name {
	case "", "file":
		return NewFileDeployer(log), nil
	case "marker":
		return NewMarkerFileDeployer(log), nil
	}
	return nil, fmt.Errorf("unknown deployer %q", name)
}
