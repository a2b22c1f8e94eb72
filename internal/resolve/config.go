package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/swarm"
)

var ErrConfigNotFound = errors.New("config not found")

// ConfigObject is the config selected for one label prefix.
type ConfigObject struct {
	Prefix  string `json:"prefix"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Data    []byte `json:"-"`
	Version uint64 `json:"version"`
}

type ConfigResolver struct {
	cli swarm.Client
}

func NewConfigResolver(cli swarm.Client) *ConfigResolver { return &ConfigResolver{cli: cli} }

// Resolve lists every config and returns the newest one named prefix*.
func (r *ConfigResolver) Resolve(ctx context.Context, prefix string) (ConfigObject, error) {
	cfgs, err := r.cli.ListConfigs(ctx)
	if err != nil {
		return ConfigObject{}, err
	}
	obj, ok := Latest(cfgs, prefix)
	if !ok {
		return ConfigObject{}, fmt.Errorf("%w: no config named %q*", ErrConfigNotFound, prefix)
	}
	return obj, nil
}

// Latest picks the config with the greatest version index among those whose
// name starts with prefix. Equal versions fall back to the greater name, then
// the greater ID, so the result never depends on list order.
func Latest(cfgs []dswarm.Config, prefix string) (ConfigObject, bool) {
	var best *dswarm.Config
	for i := range cfgs {
		c := &cfgs[i]
		if !strings.HasPrefix(c.Spec.Name, prefix) {
			continue
		}
		if best == nil || newer(c, best) {
			best = c
		}
	}
	if best == nil {
		return ConfigObject{}, false
	}
	return ConfigObject{
		Prefix:  prefix,
		ID:      best.ID,
		Name:    best.Spec.Name,
		Data:    best.Spec.Data,
		Version: best.Version.Index,
	}, true
}

func newer(a, b *dswarm.Config) bool {
	if a.Version.Index != b.Version.Index {
		return a.Version.Index > b.Version.Index
	}
	if a.Spec.Name != b.Spec.Name {
		return a.Spec.Name > b.Spec.Name
	}
	return a.ID > b.ID
}
