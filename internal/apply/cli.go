package apply

import (
	"context"
	"fmt"
	"strings"

	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/logging"
)

const dockerBinary = "docker"

// CLIApplier drives `docker service update`.
type CLIApplier struct {
	runner Runner
	opts   Options
}

func NewCLIApplier(runner Runner, opts Options) *CLIApplier {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CLIApplier{runner: runner, opts: opts}
}

func ConfigArgs(serviceID string, change ConfigChange) []string {
	args := []string{"service", "update"}
	if change.Remove != "" {
		args = append(args, "--config-rm", change.Remove)
	}
	args = append(args,
		"--config-add", fmt.Sprintf("source=%s,target=%s", change.ConfigName, change.Target),
		serviceID,
	)
	return args
}

func ImageArgs(serviceID, ref string, opts Options) []string {
	args := []string{"service", "update"}
	if opts.WithRegistryAuth {
		args = append(args, "--with-registry-auth")
	}
	if opts.Wait {
		args = append(args, "--detach=false")
	} else {
		args = append(args, "--detach=true")
	}
	if opts.Insecure {
		args = append(args, "--insecure")
	}
	if opts.NoResolveImage {
		args = append(args, "--no-resolve-image")
	}
	return append(args, "--image", ref, serviceID)
}

func (a *CLIApplier) ApplyConfigChange(ctx context.Context, svc dswarm.Service, change ConfigChange) error {
	return a.run(ctx, svc, ConfigArgs(svc.ID, change))
}

func (a *CLIApplier) ApplyImageChange(ctx context.Context, svc dswarm.Service, ref string) error {
	return a.run(ctx, svc, ImageArgs(svc.ID, ref, a.opts))
}

func (a *CLIApplier) run(ctx context.Context, svc dswarm.Service, args []string) error {
	log := logging.FromContext(ctx)
	log.Info(dockerBinary + " " + strings.Join(args, " "))
	out, err := a.runner.Run(ctx, nil, dockerBinary, args...)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(string(out)); s != "" {
		log.Debug(s)
	}
	return nil
}
