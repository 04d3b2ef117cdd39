// Package notifier shows desktop notifications for deployment results
package notifier

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/types"
)

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Sound beeps on failures
	Sound bool
}

// DeployNotifier sends deployment notifications
type DeployNotifier struct {
	enabled bool
	sound   bool
	logger  logger.Logger
	send    func(title, message string) error
	beep    func() error
}

// New creates a new deployment notifier
func New(config Config, log logger.Logger) *DeployNotifier {
	return &DeployNotifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		logger:  logger.OrNop(log),
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// SetSender replaces the desktop notification backend
func (n *DeployNotifier) SetSender(send func(title, message string) error) {
	n.send = send
}

// NotifyDeployment reports the outcome of one deployment
func (n *DeployNotifier) NotifyDeployment(out deploy.Outcome) {
	if !n.enabled {
		return
	}

	name := filepath.Base(out.Target)
	if out.Success {
		n.sendNotification("✅ Deployed", fmt.Sprintf("%s deployed in %s", name, formatDuration(out.Elapsed)), false)
		return
	}
	n.sendNotification(failureTitle(out.Kind), fmt.Sprintf("%s: %v", name, out.Err), true)
}

// NotifyBatch reports a summary for several deployments
func (n *DeployNotifier) NotifyBatch(outcomes []deploy.Outcome) {
	if !n.enabled || len(outcomes) == 0 {
		return
	}
	if len(outcomes) == 1 {
		n.NotifyDeployment(outcomes[0])
		return
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Success {
			failed++
		}
	}
	if failed == 0 {
		n.sendNotification("✅ Deployed", fmt.Sprintf("%d artifacts deployed", len(outcomes)), false)
		return
	}
	n.sendNotification("❌ Deployment Failed", fmt.Sprintf("%d of %d deployments failed", failed, len(outcomes)), true)
}

// NotifyEngine reports an engine lifecycle failure
func (n *DeployNotifier) NotifyEngine(state types.EngineState, err error) {
	if !n.enabled || err == nil {
		return
	}
	n.sendNotification("⚠️ Engine "+string(state), err.Error(), true)
}

func failureTitle(kind types.OutcomeKind) string {
	switch kind {
	case types.OutcomeTimeout:
		return "⏳ Deployment Timed Out"
	case types.OutcomeEngineError:
		return "❌ Engine Rejected Deployment"
	case types.OutcomePreconditionFailed:
		return "⚠️ Deployment Skipped"
	}
	return "❌ Deployment Failed"
}

func (n *DeployNotifier) sendNotification(title, message string, failure bool) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
		// fall back to the console
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}

	if failure && n.sound && n.beep != nil {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
