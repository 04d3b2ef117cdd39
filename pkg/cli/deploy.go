package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/config"
	pcontext "github.com/ivyci/enginectl/pkg/context"
	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/history"
	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/options"
	"github.com/ivyci/enginectl/pkg/types"
)

// deployFlags override the deploy section of the configuration
type deployFlags struct {
	app         string
	deployDir   string
	optionsFile string
	timeout     time.Duration
	marker      bool
	parallel    int
	skip        bool

	testUsers       bool
	configOverwrite bool
	cleanup         string
	targetVersion   string
	targetState     string
	fileFormat      string
	properties      map[string]string
}

func (f *deployFlags) registerTarget(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.app, "app", "a", "", "application the artifact is deployed into (default: deploy.app)")
	flags.StringVarP(&f.deployDir, "deploy-dir", "d", "", "drop directory watched by the engine (default: deploy.dir)")
}

func (f *deployFlags) registerOptions(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.optionsFile, "options-file", "", "options template delivered instead of the generated options")
	flags.BoolVar(&f.testUsers, "test-users", false, "deploy the test users of the project")
	flags.BoolVar(&f.configOverwrite, "config-overwrite", false, "overwrite existing configuration")
	flags.StringVar(&f.cleanup, "cleanup", "", "configuration cleanup: DISABLED, REMOVE_UNUSED or REMOVE_ALL")
	flags.StringVar(&f.targetVersion, "target-version", "", "version range to deploy to (AUTO, RELEASED or a range)")
	flags.StringVar(&f.targetState, "target-state", "", "target state: ACTIVE_AND_RELEASED, ACTIVE or INACTIVE")
	flags.StringVar(&f.fileFormat, "file-format", "", "target file format: AUTO or EXPANDED")
	flags.StringToStringVarP(&f.properties, "property", "P", nil, "extra template placeholder value (key=value)")
}

func (f *deployFlags) registerDeploy(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.DurationVarP(&f.timeout, "timeout", "t", 0, "how long to wait for each deployment (default: deploy.timeout)")
	flags.BoolVar(&f.marker, "marker", false, "signal the drop with a .doDeploy marker")
	flags.IntVarP(&f.parallel, "parallel", "p", 0, "maximum deployments in flight (default: deploy.parallel)")
	flags.BoolVar(&f.skip, "skip", false, "skip the deployment (default: deploy.skip)")
}

// apply returns a copy of base with every changed flag applied
func (f *deployFlags) apply(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := *base
	cfg.Deploy.Properties = make(map[string]string, len(base.Deploy.Properties)+len(f.properties))
	for k, v := range base.Deploy.Properties {
		cfg.Deploy.Properties[k] = v
	}

	changed := cmd.Flags().Changed
	if changed("app") {
		cfg.Deploy.App = f.app
	}
	if changed("deploy-dir") {
		cfg.Deploy.Dir = f.deployDir
	}
	if changed("options-file") {
		cfg.Deploy.OptionsFile = f.optionsFile
	}
	if changed("timeout") {
		cfg.Deploy.Timeout = f.timeout
	}
	if changed("marker") {
		cfg.Deploy.Marker = f.marker
	}
	if changed("parallel") {
		cfg.Deploy.Parallel = f.parallel
	}
	if changed("skip") {
		cfg.Deploy.Skip = f.skip
	}
	if changed("test-users") {
		cfg.Deploy.Options.TestUsers = f.testUsers
	}
	if changed("config-overwrite") {
		cfg.Deploy.Options.ConfigOverwrite = f.configOverwrite
	}
	if changed("cleanup") {
		cfg.Deploy.Options.ConfigCleanup = strings.ToUpper(f.cleanup)
	}
	if changed("target-version") {
		cfg.Deploy.Options.TargetVersion = f.targetVersion
	}
	if changed("target-state") {
		cfg.Deploy.Options.TargetState = strings.ToUpper(f.targetState)
	}
	if changed("file-format") {
		cfg.Deploy.Options.TargetFileFormat = strings.ToUpper(f.fileFormat)
	}
	for k, v := range f.properties {
		cfg.Deploy.Properties[k] = v
	}

	if err := config.NewManager().ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *CLI) newDeployCmd() *cobra.Command {
	var flags deployFlags
	var startEngine, stopEngine bool

	cmd := &cobra.Command{
		Use:   "deploy [file...]",
		Short: "Deploy artifacts into the engine",
		Long: `Drop one or more packaged artifacts into the engine's drop directory and wait
for the engine to acknowledge each of them.

The command exits with an error when any deployment does not succeed. Timed
out artifacts are left in the drop directory; the engine may still pick them up.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, c.settings)
			if err != nil {
				return err
			}
			return c.runDeploy(cmd, settings, args, startEngine, stopEngine)
		},
	}

	flags.registerTarget(cmd)
	flags.registerDeploy(cmd)
	flags.registerOptions(cmd)
	cmd.Flags().BoolVar(&startEngine, "start-engine", false, "start the engine first if it is not running")
	cmd.Flags().BoolVar(&stopEngine, "stop-engine", false, "stop the engine afterwards if this command started it")
	return cmd
}

func (c *CLI) runDeploy(cmd *cobra.Command, settings *config.Config, files []string, startEngine, stopEngine bool) error {
	rc := c.runtime(cmd, "deploy")
	log := logger.WithContext(rc.Context, c.logger)

	if settings.Deploy.Skip {
		log.Info("Skipping deployment to engine", logger.WithField("files", len(files)))
		c.printInfo("Skipping deployment to engine")
		return nil
	}

	if startEngine {
		stop, err := c.ensureEngine(settings)
		if err != nil {
			return err
		}
		if stopEngine && stop != nil {
			defer stop()
		}
	}

	rendered, err := options.Render(settings.Deploy.OptionsFile, settings.Deploy.Options, settings.Deploy.Properties)
	if err != nil {
		return err
	}
	for _, key := range rendered.Unresolved {
		c.printWarning(fmt.Sprintf("Options template placeholder ${%s} has no value", key))
	}

	deployer, err := deploy.New(settings.DeployerName(), log)
	if err != nil {
		return err
	}

	deployDir := settings.ResolveDeployDir()
	outcomes := make([]deploy.Outcome, len(files))
	var reqs []*deploy.Request
	var index []int
	var rejected []history.Entry
	for i, file := range files {
		req, err := deploy.NewRequest(deploy.RequestSpec{
			Source:        file,
			DeployDir:     deployDir,
			Application:   settings.Deploy.App,
			Options:       rendered.Data,
			OptionsFormat: rendered.Format,
			Timeout:       settings.Deploy.Timeout,
			PollInterval:  settings.Deploy.PollInterval,
		})
		if err != nil {
			log.Warn(fmt.Sprintf("Skipping deployment of %s: %v", file, err))
			outcomes[i] = deploy.Outcome{ID: pcontext.NewDeploymentID(), Kind: types.OutcomePreconditionFailed, Target: file, Err: err}
			rejected = append(rejected, history.Entry{
				ID:          outcomes[i].ID,
				Artifact:    file,
				Target:      filepath.Join(deployDir, settings.Deploy.App, filepath.Base(file)),
				Application: settings.Deploy.App,
				Deployer:    deployer.Name(),
				Kind:        types.OutcomePreconditionFailed,
				Error:       err.Error(),
			})
			continue
		}
		reqs = append(reqs, req)
		index = append(index, i)
	}

	results, err := c.deployRequests(rc.Context, deployer, reqs, settings.Deploy.Parallel, log)
	if err != nil {
		return err
	}
	for j, out := range results {
		outcomes[index[j]] = out
	}

	entries := rejected
	for j, req := range reqs {
		entries = append(entries, history.FromOutcome(req, results[j], deployer.Name()))
	}
	c.recordHistory(rc.Context, settings, entries)
	c.notifier().NotifyBatch(outcomes)

	for _, out := range outcomes {
		if out.Success {
			c.printSuccess(out.String())
		} else {
			c.printError(out.String())
		}
	}

	log.Debug("Deploy command finished", logger.WithField("elapsed", time.Since(rc.StartTime).Round(time.Millisecond)))
	if !deploy.AllSucceeded(outcomes) {
		return fmt.Errorf("deployment failed (%s)", summarize(deploy.Summary(outcomes)))
	}
	return nil
}

// deployRequests honours cancellation for a single request and runs several in parallel
func (c *CLI) deployRequests(ctx context.Context, d deploy.Deployer, reqs []*deploy.Request, parallel int, log logger.Logger) ([]deploy.Outcome, error) {
	switch len(reqs) {
	case 0:
		return nil, nil
	case 1:
		out, err := deploy.Await(ctx, d, reqs[0])
		if err != nil {
			return nil, fmt.Errorf("deployment of %s interrupted, the engine may still pick it up: %w", reqs[0].Target(), err)
		}
		return []deploy.Outcome{out}, nil
	}
	return deploy.DeployAll(d, reqs, parallel, log), nil
}

// ensureEngine starts the engine when it is not running. The returned func stops
// it again and is nil when the engine was already running.
func (c *CLI) ensureEngine(settings *config.Config) (func(), error) {
	s, err := c.openEngine()
	if err != nil {
		return nil, err
	}
	if s.controller.State() == types.EngineStateRunning {
		return nil, nil
	}

	if err := s.controller.Start(settings.Engine.StartTimeout); err != nil {
		s.recordError(err)
		c.notifier().NotifyEngine(types.EngineStateError, err)
		return nil, err
	}
	return func() {
		if err := s.controller.Stop(settings.Engine.StopTimeout); err != nil {
			s.recordError(err)
			c.printWarning(fmt.Sprintf("Failed to stop the engine: %v", err))
		}
	}, nil
}

// recordHistory is best effort; a broken ledger never fails a deployment
func (c *CLI) recordHistory(ctx context.Context, settings *config.Config, entries []history.Entry) {
	if !settings.History.Enabled || len(entries) == 0 {
		return
	}

	store, err := history.Open(historyPath(settings))
	if err != nil {
		c.logger.Warn("Deployment history unavailable", logger.WithError(err))
		return
	}
	defer store.Close()

	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil && !errors.Is(err, history.ErrAlreadyRecorded) {
			c.logger.Warn("Failed to record deployment", logger.WithError(err))
		}
	}
}

func historyPath(settings *config.Config) string {
	if settings.History.Path != "" {
		return settings.History.Path
	}
	return history.DefaultPath()
}

func summarize(counts map[types.OutcomeKind]int) string {
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %d", kind, counts[types.OutcomeKind(kind)]))
	}
	return strings.Join(parts, ", ")
}
