// Package swarmtest provides an in-memory swarm.Client for tests.
package swarmtest

import (
	"context"
	"fmt"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/registry"
	dswarm "github.com/docker/docker/api/types/swarm"
)

type Update struct {
	ServiceID string
	Spec      dswarm.ServiceSpec
	Opts      dswarm.ServiceUpdateOptions
}

type Pull struct {
	Ref  string
	Auth string
}

// Fake serves canned services, configs and image digests and records every
// call that would change state.
type Fake struct {
	mu sync.Mutex

	Services []dswarm.Service
	Configs  []dswarm.Config
	// RepoDigests is keyed by the image name passed to ImageRepoDigests.
	RepoDigests map[string][]string

	PullErr     error
	ListErr     error
	LoginErr    error
	UpdateErr   error
	InspectHook func(svc *dswarm.Service)

	Pulls        []Pull
	Updates      []Update
	Logins       []registry.AuthConfig
	ConfigLists  int
	ServiceLists int
}

func (f *Fake) ListServices(_ context.Context) ([]dswarm.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ServiceLists++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]dswarm.Service(nil), f.Services...), nil
}

func (f *Fake) InspectService(_ context.Context, id string) (dswarm.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Services {
		if s.ID == id {
			if f.InspectHook != nil {
				f.InspectHook(&s)
			}
			return s, nil
		}
	}
	return dswarm.Service{}, fmt.Errorf("service %s: %w", id, cerrdefs.ErrNotFound)
}

func (f *Fake) ListConfigs(_ context.Context) ([]dswarm.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfigLists++
	return append([]dswarm.Config(nil), f.Configs...), nil
}

func (f *Fake) PullImage(_ context.Context, ref string, auth string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulls = append(f.Pulls, Pull{Ref: ref, Auth: auth})
	return f.PullErr
}

func (f *Fake) ImageRepoDigests(_ context.Context, image string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.RepoDigests[image]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", image, cerrdefs.ErrNotFound)
	}
	return d, nil
}

func (f *Fake) UpdateService(_ context.Context, svc dswarm.Service, spec dswarm.ServiceSpec, opts dswarm.ServiceUpdateOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	f.Updates = append(f.Updates, Update{ServiceID: svc.ID, Spec: spec, Opts: opts})
	for i := range f.Services {
		if f.Services[i].ID == svc.ID {
			f.Services[i].Spec = spec
			f.Services[i].Version.Index++
		}
	}
	return nil, nil
}

func (f *Fake) RegistryLogin(_ context.Context, auth registry.AuthConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logins = append(f.Logins, auth)
	return f.LoginErr
}

// Service builds a service with the given labels and container spec bits.
func Service(id, name, image string, labels map[string]string, configs ...*dswarm.ConfigReference) dswarm.Service {
	return dswarm.Service{
		ID: id,
		Spec: dswarm.ServiceSpec{
			Annotations: dswarm.Annotations{Name: name, Labels: labels},
			TaskTemplate: dswarm.TaskSpec{
				ContainerSpec: &dswarm.ContainerSpec{
					Image:   image,
					Configs: configs,
				},
			},
		},
	}
}

// ConfigRef builds an attached config reference mounted at target.
func ConfigRef(id, name, target string) *dswarm.ConfigReference {
	return &dswarm.ConfigReference{
		ConfigID:   id,
		ConfigName: name,
		File:       &dswarm.ConfigReferenceFileTarget{Name: target, UID: "0", GID: "0", Mode: 0o444},
	}
}

// Config builds a config object at the given version index.
func Config(id, name string, version uint64, data string) dswarm.Config {
	c := dswarm.Config{ID: id, Spec: dswarm.ConfigSpec{Annotations: dswarm.Annotations{Name: name}, Data: []byte(data)}}
	c.Version.Index = version
	return c
}
