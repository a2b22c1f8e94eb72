package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/logging"
	"github.com/cmmoran/swarmup/internal/resolve"
	"github.com/cmmoran/swarmup/internal/swarm"
)

var ErrUpdateNotConverged = errors.New("service update did not converge")

const (
	defaultPollInterval = time.Second
	// clockSkew tolerates manager clocks running behind ours when matching
	// the update status to the request just sent.
	clockSkew = 5 * time.Second
)

// APIApplier updates services through the Engine API.
type APIApplier struct {
	cli  swarm.Client
	auth resolve.RegistryAuth
	opts Options
	poll time.Duration
	now  func() time.Time
}

func NewAPIApplier(cli swarm.Client, auth resolve.RegistryAuth, opts Options) *APIApplier {
	return &APIApplier{cli: cli, auth: auth, opts: opts, poll: defaultPollInterval, now: time.Now}
}

func (a *APIApplier) ApplyConfigChange(ctx context.Context, svc dswarm.Service, change ConfigChange) error {
	log := logging.FromContext(ctx)
	log.Info("service update", "config_rm", change.Remove, "config_add", change.ConfigName, "target", change.Target)

	warnings, err := a.cli.UpdateService(ctx, svc, withConfigChange(svc.Spec, change), dswarm.ServiceUpdateOptions{})
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return nil
}

func (a *APIApplier) ApplyImageChange(ctx context.Context, svc dswarm.Service, ref string) error {
	log := logging.FromContext(ctx)
	log.Info("service update", "image", ref, "with_registry_auth", a.opts.WithRegistryAuth, "query_registry", !a.opts.NoResolveImage)
	if a.opts.Insecure {
		log.Debug("insecure has no effect on Engine API updates; configure the daemon's insecure-registries instead")
	}

	opts := dswarm.ServiceUpdateOptions{QueryRegistry: !a.opts.NoResolveImage}
	if a.opts.WithRegistryAuth && a.auth != nil {
		repo := ref
		if parsed, err := resolve.ParseImageRef(ref); err == nil {
			repo = parsed.Repository
		}
		encoded, err := a.auth.EncodedAuth(repo)
		if err != nil {
			return fmt.Errorf("registry auth for %q: %w", repo, err)
		}
		opts.EncodedRegistryAuth = encoded
	}

	begin := a.now()
	warnings, err := a.cli.UpdateService(ctx, svc, withImage(svc.Spec, ref), opts)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	if !a.opts.Wait {
		return nil
	}
	return a.waitConverged(ctx, svc.ID, begin)
}

// waitConverged polls until the rolling update started at or after begin has
// completed, or fails when swarm pauses or rolls it back.
func (a *APIApplier) waitConverged(ctx context.Context, id string, begin time.Time) error {
	t := time.NewTicker(a.poll)
	defer t.Stop()
	for {
		svc, err := a.cli.InspectService(ctx, id)
		if err != nil {
			return err
		}
		st := svc.UpdateStatus
		if st == nil {
			return nil
		}
		if st.StartedAt != nil && !st.StartedAt.Before(begin.Add(-clockSkew)) {
			switch st.State {
			case dswarm.UpdateStateCompleted:
				return nil
			case dswarm.UpdateStatePaused, dswarm.UpdateStateRollbackStarted,
				dswarm.UpdateStateRollbackPaused, dswarm.UpdateStateRollbackCompleted:
				return fmt.Errorf("%w: %s: %s", ErrUpdateNotConverged, st.State, st.Message)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
