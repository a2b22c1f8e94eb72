package swarm

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	dswarm "github.com/docker/docker/api/types/swarm"
	dclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
)

// DockerClient implements Client using the official Docker SDK.
type DockerClient struct {
	c *dclient.Client
}

func NewDockerClient() (*DockerClient, error) {
	cli, err := dclient.NewClientWithOpts(dclient.FromEnv, dclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerClient{c: cli}, nil
}

func (d *DockerClient) Close() error { return d.c.Close() }

func (d *DockerClient) ListServices(ctx context.Context) ([]dswarm.Service, error) {
	svcs, err := d.c.ServiceList(ctx, dswarm.ServiceListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return svcs, nil
}

func (d *DockerClient) InspectService(ctx context.Context, id string) (dswarm.Service, error) {
	svc, _, err := d.c.ServiceInspectWithRaw(ctx, id, dswarm.ServiceInspectOptions{})
	if err != nil {
		return dswarm.Service{}, fmt.Errorf("inspect service %q: %w", id, err)
	}
	return svc, nil
}

func (d *DockerClient) ListConfigs(ctx context.Context) ([]dswarm.Config, error) {
	cfgs, err := d.c.ConfigList(ctx, dswarm.ConfigListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return cfgs, nil
}

// PullImage drains the progress stream; errors reported inside the stream
// surface as the returned error.
func (d *DockerClient) PullImage(ctx context.Context, ref string, encodedAuth string) error {
	rc, err := d.c.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: encodedAuth})
	if err != nil {
		return fmt.Errorf("pull %q: %w", ref, err)
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("pull %q: %w", ref, err)
	}
	return nil
}

func (d *DockerClient) ImageRepoDigests(ctx context.Context, ref string) ([]string, error) {
	img, err := d.c.ImageInspect(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("inspect image %q: %w", ref, err)
	}
	return img.RepoDigests, nil
}

func (d *DockerClient) UpdateService(ctx context.Context, svc dswarm.Service, spec dswarm.ServiceSpec, opts dswarm.ServiceUpdateOptions) ([]string, error) {
	resp, err := d.c.ServiceUpdate(ctx, svc.ID, svc.Version, spec, opts)
	if err != nil {
		return nil, fmt.Errorf("update service %q: %w", svc.ID, err)
	}
	return resp.Warnings, nil
}

func (d *DockerClient) RegistryLogin(ctx context.Context, auth registry.AuthConfig) error {
	if _, err := d.c.RegistryLogin(ctx, auth); err != nil {
		return fmt.Errorf("registry login %q: %w", auth.ServerAddress, err)
	}
	return nil
}
