package apply

import (
	"context"
	"fmt"

	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/diff"
	"github.com/cmmoran/swarmup/internal/resolve"
	"github.com/cmmoran/swarmup/internal/swarm"
)

// ConfigChange detaches Remove (when set) and attaches ConfigName at Target in
// one service update.
type ConfigChange struct {
	Remove     string
	ConfigID   string
	ConfigName string
	Target     string
}

func ConfigChangeFor(r diff.Resolution) ConfigChange {
	return ConfigChange{
		Remove:     r.Remove,
		ConfigID:   r.ConfigID,
		ConfigName: r.ConfigName,
		Target:     r.ConfigPath,
	}
}

// Applier submits service mutations. Each call is one update request; a
// failure is returned as is and never retried here.
type Applier interface {
	ApplyConfigChange(ctx context.Context, svc dswarm.Service, change ConfigChange) error
	ApplyImageChange(ctx context.Context, svc dswarm.Service, ref string) error
}

// Options are the image update switches.
type Options struct {
	WithRegistryAuth bool
	Wait             bool
	Insecure         bool
	NoResolveImage   bool
}

func OptionsFrom(c config.Config) Options {
	return Options{
		WithRegistryAuth: c.ForwardAuth(),
		Wait:             c.Update.Wait,
		Insecure:         c.Update.Insecure,
		NoResolveImage:   c.Update.NoResolveImage,
	}
}

// New returns the applier for the configured driver.
func New(c config.Config, cli swarm.Client, runner Runner, auth resolve.RegistryAuth) (Applier, error) {
	opts := OptionsFrom(c)
	switch c.Driver {
	case config.DriverCLI:
		return NewCLIApplier(runner, opts), nil
	case config.DriverAPI:
		return NewAPIApplier(cli, auth, opts), nil
	case config.DriverNoop:
		return NewNoopApplier(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDriver, c.Driver)
	}
}
