package deploy

import "context"

// Await runs d.Deploy and returns early with ctx.Err() when ctx is done first.
//
// Cancellation is best effort: the artifact may already be in the drop directory,
// and the engine may still deploy it. The abandoned call keeps polling until its
// own timeout and its outcome is discarded.
func Await(ctx context.Context, d Deployer, req *Request) (Outcome, error) {
	done := make(chan Outcome, 1)
	go func() {
		done <- d.Deploy(req)
	}()

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
