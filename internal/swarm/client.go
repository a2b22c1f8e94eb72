package swarm

import (
	"context"

	"github.com/docker/docker/api/types/registry"
	dswarm "github.com/docker/docker/api/types/swarm"
)

// Client is the slice of the Engine API the reconciler needs. Implementations
// must be safe for concurrent use by workers.
type Client interface {
	ListServices(ctx context.Context) ([]dswarm.Service, error)
	InspectService(ctx context.Context, id string) (dswarm.Service, error)
	ListConfigs(ctx context.Context) ([]dswarm.Config, error)

	// PullImage pulls ref and waits for the pull to finish.
	PullImage(ctx context.Context, ref string, encodedAuth string) error
	// ImageRepoDigests returns the repo digests of the locally cached image.
	ImageRepoDigests(ctx context.Context, image string) ([]string, error)

	UpdateService(ctx context.Context, svc dswarm.Service, spec dswarm.ServiceSpec, opts dswarm.ServiceUpdateOptions) ([]string, error)
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) error
}
