package deploy

import (
	"context"
	"fmt"

	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/types"
)

// DeployAll runs independent requests with at most parallelism deployments in
// flight and returns one Outcome per request, in request order. A failing
// deployment never aborts the others. A request whose target path is already
// taken by an earlier request fails its precondition and is not deployed.
func DeployAll(d Deployer, reqs []*Request, parallelism int, log logger.Logger) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return outcomes
	}
	if parallelism <= 0 {
		parallelism = 1
	}

	group, _ := NewSafeGroup(context.Background(), log)
	group.SetLimit(parallelism)

	claimed := make(map[string]*Request, len(reqs))
	for i, req := range reqs {
		if first, ok := claimed[req.Target()]; ok {
			outcomes[i] = failed(req, types.OutcomePreconditionFailed, 0,
				fmt.Errorf("%w: %s would overwrite %s at %s", ErrPreconditionFailed, req.Source(), first.Source(), req.Target()))
			continue
		}
		claimed[req.Target()] = req
		group.Go(func() error {
			outcomes[i] = d.Deploy(req)
			return nil
		})
	}
	err := group.Wait()

	for i, out := range outcomes {
		if out.Kind == "" {
			outcomes[i] = failed(reqs[i], types.OutcomeIOFailure, 0,
				fmt.Errorf("%w: deployment aborted: %v", ErrIOFailure, err))
		}
	}
	return outcomes
}

// Summary counts outcomes by kind
func Summary(outcomes []Outcome) map[types.OutcomeKind]int {
	counts := make(map[types.OutcomeKind]int)
	for _, o := range outcomes {
		counts[o.Kind]++
	}
	return counts
}

// AllSucceeded reports whether every outcome is a success
func AllSucceeded(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}
