package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/engine"
	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/notifier"
	"github.com/ivyci/enginectl/pkg/state"
	"github.com/ivyci/enginectl/pkg/types"
)

// engineSession couples a controller to the persisted engine record, so that
// an engine started by one invocation can be stopped by the next
type engineSession struct {
	controller *engine.Controller
	handle     *engine.ExecHandle
	states     *state.Manager
	record     *state.EngineRecord
	engineDir  string
	command    string
	logger     logger.Logger
}

func (c *CLI) openEngine() (*engineSession, error) {
	s := &engineSession{
		handle:    engine.NewExecHandle(c.settings.ExecConfig(), c.logger),
		states:    c.stateManager(),
		engineDir: c.settings.Engine.Dir,
		command:   c.settings.Engine.Command,
		logger:    c.logger,
	}

	rec, err := s.states.Active(state.DefaultName)
	switch {
	case err == nil:
		if err := s.handle.Attach(rec.PID); err != nil {
			c.logger.Debug("Could not attach to recorded engine", logger.WithError(err))
		} else {
			s.record = rec
			c.logger.Debug("Attached to engine", logger.WithField("pid", rec.PID))
		}
	case errors.Is(err, state.ErrNoRecord):
	default:
		return nil, err
	}

	cfg := c.settings.ControllerConfig()
	cfg.OnTransition = s.persist
	s.controller = engine.NewController(s.handle, c.settings.Probe(s.handle), cfg, c.logger.WithTarget("engine"))
	return s, nil
}

// persist mirrors every state change into the engine record
func (s *engineSession) persist(from, to types.EngineState) {
	if to == types.EngineStateStopped {
		if err := s.states.Remove(state.DefaultName); err != nil {
			s.logger.Warn("Failed to remove engine record", logger.WithError(err))
		}
		s.record = nil
		return
	}

	pid := s.handle.PID()
	if pid == 0 {
		return
	}
	if s.record == nil || s.record.PID != pid {
		s.record = &state.EngineRecord{
			Name:      state.DefaultName,
			EngineDir: s.engineDir,
			PID:       pid,
			Command:   s.command,
			StartedAt: time.Now(),
		}
	}
	s.record.State = to
	if err := s.states.Save(s.record); err != nil {
		s.logger.Warn("Failed to save engine record", logger.WithError(err))
	}
}

// recordError keeps the failure reason with a record that outlives this invocation
func (s *engineSession) recordError(err error) {
	if s.record == nil {
		return
	}
	if uerr := s.states.UpdateState(state.DefaultName, types.EngineStateError, err.Error()); uerr != nil && !errors.Is(uerr, state.ErrNoRecord) {
		s.logger.Warn("Failed to update engine record", logger.WithError(uerr))
	}
}

func (c *CLI) notifier() *notifier.DeployNotifier {
	return notifier.New(notifier.Config{
		Enabled: c.settings.Notifications.Enabled,
		Sound:   c.settings.Notifications.Sound,
	}, c.logger)
}

func (c *CLI) newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Control the engine process",
		Long:  `Start, stop and inspect the local engine process.`,
	}

	cmd.AddCommand(c.newEngineStartCmd(), c.newEngineStopCmd(), c.newEngineStatusCmd())
	return cmd
}

func (c *CLI) newEngineStartCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the engine and wait until it is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				timeout = c.settings.Engine.StartTimeout
			}
			return c.runEngineStart(timeout)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "how long to wait for the engine (default: engine.start_timeout)")
	return cmd
}

func (c *CLI) runEngineStart(timeout time.Duration) error {
	s, err := c.openEngine()
	if err != nil {
		return err
	}

	if err := s.controller.Start(timeout); err != nil {
		s.recordError(err)
		c.notifier().NotifyEngine(types.EngineStateError, err)
		if pid := s.handle.PID(); pid != 0 && s.handle.Alive() {
			c.printWarning(fmt.Sprintf("Engine process %d is still running; use 'enginectl engine stop --force' to end it", pid))
		}
		return err
	}

	if pid := s.handle.PID(); pid != 0 {
		c.printSuccess(fmt.Sprintf("Engine is running (pid %d)", pid))
	} else {
		c.printSuccess("Engine is running")
	}
	return nil
}

func (c *CLI) newEngineStopCmd() *cobra.Command {
	var timeout time.Duration
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the engine and wait until it is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				timeout = c.settings.Engine.StopTimeout
			}
			return c.runEngineStop(timeout, force)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "how long to wait for a graceful shutdown (default: engine.stop_timeout)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "kill the engine when it does not stop")
	return cmd
}

func (c *CLI) runEngineStop(timeout time.Duration, force bool) error {
	s, err := c.openEngine()
	if err != nil {
		return err
	}

	err = s.controller.Stop(timeout)
	if err == nil {
		c.printSuccess("Engine is stopped")
		return nil
	}

	if force {
		c.printWarning(fmt.Sprintf("Graceful stop failed (%v), killing the engine", err))
		kerr := s.controller.Kill()
		if kerr == nil {
			c.printSuccess("Engine was killed")
			return nil
		}
		err = kerr
	}

	s.recordError(err)
	c.notifier().NotifyEngine(types.EngineStateError, err)
	return err
}

func (c *CLI) newEngineStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the engine state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEngineStatus()
		},
	}
}

func (c *CLI) runEngineStatus() error {
	s, err := c.openEngine()
	if err != nil {
		return err
	}

	st := s.controller.State()
	pid, started, lastErr := "-", "-", ""
	if rec := s.record; rec != nil {
		pid = strconv.Itoa(rec.PID)
		started = rec.StartedAt.Format("2006-01-02 15:04:05")
		if rec.State == types.EngineStateError {
			st = types.EngineStateError
			lastErr = rec.LastError
		}
	}

	dir := c.settings.Engine.Dir
	if dir == "" {
		dir = "-"
	}
	fmt.Fprintln(c.output, renderTable(
		[]string{"ENGINE", "STATE", "PID", "STARTED", "DIRECTORY"},
		[][]string{{state.DefaultName, string(st), pid, started, dir}},
		1,
	))
	if lastErr != "" {
		c.printWarning("Last error: " + lastErr)
	}
	return nil
}
