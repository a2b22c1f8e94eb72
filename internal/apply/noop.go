package apply

import (
	"context"
	"strings"

	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/logging"
)

// NoopApplier only logs the command it would have run.
type NoopApplier struct{}

func NewNoopApplier() *NoopApplier { return &NoopApplier{} }

func (n *NoopApplier) ApplyConfigChange(ctx context.Context, svc dswarm.Service, change ConfigChange) error {
	logging.FromContext(ctx).
		Info("dry-run: " + dockerBinary + " " + strings.Join(ConfigArgs(svc.ID, change), " "))
	return nil
}

func (n *NoopApplier) ApplyImageChange(ctx context.Context, svc dswarm.Service, ref string) error {
	logging.FromContext(ctx).
		Info("dry-run: " + dockerBinary + " " + strings.Join(ImageArgs(svc.ID, ref, Options{}), " "))
	return nil
}
