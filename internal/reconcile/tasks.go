package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	cerrdefs "github.com/containerd/errdefs"
	dswarm "github.com/docker/docker/api/types/swarm"

	"github.com/cmmoran/swarmup/internal/apply"
	"github.com/cmmoran/swarmup/internal/diff"
	"github.com/cmmoran/swarmup/internal/labels"
	"github.com/cmmoran/swarmup/internal/logging"
	"github.com/cmmoran/swarmup/internal/specnorm"
	"github.com/cmmoran/swarmup/internal/status"
	"github.com/cmmoran/swarmup/internal/util"
)

// fetch re-reads the service so every task works on fresh state. A service
// removed since discovery is skipped quietly.
func (r *Reconciler) fetch(ctx context.Context, id string, phase status.Phase, rep *status.Report) (dswarm.Service, bool) {
	svc, err := r.cli.InspectService(ctx, id)
	if err == nil {
		return svc, true
	}
	log := logging.FromContext(ctx).With(slog.String("service_id", id))
	if cerrdefs.IsNotFound(err) {
		log.Debug("service is gone", slog.Any("err", err))
		rep.Add(status.Entry{Phase: phase, ServiceID: id, Service: id, Outcome: status.OutcomeSkipped, Detail: "service removed"})
		return svc, false
	}
	log.Error("inspect service", slog.Any("err", err))
	rep.Add(status.Entry{Phase: phase, ServiceID: id, Service: id, Outcome: status.OutcomeFailed, Detail: err.Error()})
	return svc, false
}

func (r *Reconciler) processImage(ctx context.Context, id string, rep *status.Report) {
	svc, ok := r.fetch(ctx, id, status.PhaseImage, rep)
	if !ok {
		return
	}
	log := logging.ForService(logging.FromContext(ctx), svc.Spec.Name, svc.ID)
	ctx = logging.WithLogger(ctx, log)

	in := labels.Parse(svc.Spec.Labels, r.cfg.ImageLabel, r.cfg.ConfigLabel)
	if !in.TracksImage {
		log.Debug(fmt.Sprintf("Label %s not found!", r.cfg.ImageLabel))
		return
	}

	current := specnorm.Image(svc.Spec)
	entry := status.Entry{Phase: status.PhaseImage, ServiceID: svc.ID, Service: svc.Spec.Name, Subject: current}

	log.Debug("Getting information about image updates...")
	cmp, err := r.images.Check(ctx, current)
	if err != nil {
		log.Error("image check failed", slog.String("image", current), slog.Any("err", err))
		entry.Outcome, entry.Detail = status.OutcomeFailed, err.Error()
		rep.Add(entry)
		return
	}
	if !cmp.NeedsUpdate() {
		log.Info("No image updates found!")
		entry.Outcome = status.OutcomeUnchanged
		rep.Add(entry)
		return
	}

	log.Info("Update found!",
		slog.String("local_digest", util.Short(cmp.LocalDigest)),
		slog.String("registry_digest", util.Short(cmp.RegistryDigest)))
	log.Info("Update image to " + cmp.UpdateRef)
	if err := r.applier.ApplyImageChange(ctx, svc, cmp.UpdateRef); err != nil {
		log.Error("image update failed", slog.Any("err", err))
		entry.Outcome, entry.Detail = status.OutcomeFailed, err.Error()
		rep.Add(entry)
		return
	}
	log.Info("Updated!")
	entry.Outcome, entry.Detail = status.OutcomeUpdated, cmp.UpdateRef
	rep.Add(entry)
}

func (r *Reconciler) processConfigs(ctx context.Context, id string, rep *status.Report) {
	svc, ok := r.fetch(ctx, id, status.PhaseConfig, rep)
	if !ok {
		return
	}
	log := logging.ForService(logging.FromContext(ctx), svc.Spec.Name, svc.ID)
	ctx = logging.WithLogger(ctx, log)

	in := labels.Parse(svc.Spec.Labels, r.cfg.ImageLabel, r.cfg.ConfigLabel)
	if len(in.Configs) == 0 {
		log.Debug(fmt.Sprintf("Label %s.* not found!", r.cfg.ConfigLabel))
		return
	}

	for _, b := range in.Configs {
		entry := status.Entry{Phase: status.PhaseConfig, ServiceID: svc.ID, Service: svc.Spec.Name, Subject: b.Prefix}
		log.Debug("config label", slog.String("prefix", b.Prefix), slog.String("target", b.Target))

		obj, err := r.configs.Resolve(ctx, b.Prefix)
		if err != nil {
			log.Error(fmt.Sprintf("The config with the name '%s' does not exist", b.Prefix), slog.Any("err", err))
			entry.Outcome, entry.Detail = status.OutcomeFailed, err.Error()
			rep.Add(entry)
			continue
		}
		log.Debug("swarm config found",
			slog.String("config_id", obj.ID),
			slog.String("config_name", obj.Name),
			slog.Uint64("version", obj.Version),
			slog.String("content", util.Short(util.Fingerprint(obj.Data))))

		res := diff.Classify(b, obj, specnorm.Configs(svc.Spec))
		switch res.Action {
		case diff.ActionNone:
			log.Info("No config updates found!", slog.String("config", obj.Name))
			entry.Outcome = status.OutcomeUnchanged
			rep.Add(entry)
			continue
		case diff.ActionAdd:
			log.Info(fmt.Sprintf("New config '%s' found", res.ConfigName))
			log.Info(fmt.Sprintf("Add config '%s' at %s", res.ConfigName, res.ConfigPath))
			entry.Outcome = status.OutcomeAdded
		case diff.ActionUpdate:
			log.Info(fmt.Sprintf("Config '%s' updates found", res.ConfigName))
			log.Info(fmt.Sprintf("Update config '%s' at %s", res.ConfigName, res.ConfigPath))
			entry.Outcome = status.OutcomeUpdated
		}

		if err := r.applier.ApplyConfigChange(ctx, svc, apply.ConfigChangeFor(res)); err != nil {
			log.Error("config update failed", slog.String("config", res.ConfigName), slog.Any("err", err))
			entry.Outcome, entry.Detail = status.OutcomeFailed, err.Error()
			rep.Add(entry)
			continue
		}
		log.Info(fmt.Sprintf("Config '%s' %s!", res.ConfigName, entry.Outcome))
		entry.Detail = res.ConfigName
		rep.Add(entry)

		// The update bumped the service version; later bindings need it.
		if svc, ok = r.fetch(ctx, id, status.PhaseConfig, rep); !ok {
			return
		}
	}
}
