package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"
	dswarm "github.com/docker/docker/api/types/swarm"
	"golang.org/x/sync/errgroup"

	"github.com/cmmoran/swarmup/internal/apply"
	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/labels"
	"github.com/cmmoran/swarmup/internal/logging"
	"github.com/cmmoran/swarmup/internal/render"
	"github.com/cmmoran/swarmup/internal/resolve"
	"github.com/cmmoran/swarmup/internal/status"
	"github.com/cmmoran/swarmup/internal/swarm"
)

// ErrFatal marks the errors that stop the reconcile loop.
var ErrFatal = errors.New("fatal")

// Authenticator logs into the registry once per cycle and hands out pull
// credentials.
type Authenticator interface {
	Login(ctx context.Context) error
	resolve.RegistryAuth
}

type Reconciler struct {
	cfg     config.Config
	cli     swarm.Client
	auth    Authenticator
	applier apply.Applier
	configs *resolve.ConfigResolver
	images  *resolve.ImageChecker
	filter  *regexp2.Regexp
	now     func() time.Time
}

func New(cfg config.Config, cli swarm.Client, auth Authenticator, applier apply.Applier) (*Reconciler, error) {
	r := &Reconciler{
		cfg:     cfg,
		cli:     cli,
		auth:    auth,
		applier: applier,
		configs: resolve.NewConfigResolver(cli),
		images:  resolve.NewImageChecker(cli, auth, render.NewEngine(render.Options{ImageTemplate: cfg.Update.ImageTemplate}), cfg.Update.PinDigest),
		now:     time.Now,
	}
	if cfg.ServiceFilter != "" {
		re, err := regexp2.Compile(cfg.ServiceFilter, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("service filter %q: %w", cfg.ServiceFilter, err)
		}
		re.MatchTimeout = time.Second
		r.filter = re
	}
	return r, nil
}

// Run repeats cycles until ctx is done or a cycle fails fatally. Cycles never
// overlap: the interval starts counting once the previous cycle has drained.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	for {
		rep, err := r.RunCycle(ctx)
		if errors.Is(err, ErrFatal) {
			return err
		}
		if err != nil {
			log.Error("cycle aborted", slog.Any("err", err))
		}
		if rep != nil {
			logSummary(log, rep)
		}

		log.Info(fmt.Sprintf("Timeout for %d seconds", int(r.cfg.Interval/time.Second)))
		t := time.NewTimer(r.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// RunCycle performs one full pass: login, discovery, the image phase and then
// the config phase.
func (r *Reconciler) RunCycle(ctx context.Context) (*status.Report, error) {
	log := logging.FromContext(ctx)
	log.Info("START NEW CYCLE")

	if err := r.auth.Login(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	rep := status.NewReport(r.now())
	defer func() { rep.FinishedAt = r.now() }()

	svcs, err := r.cli.ListServices(ctx)
	if err != nil {
		return rep, err
	}
	imageIDs, configIDs := r.discover(ctx, svcs)

	log.Info("PROCESS IMAGES...")
	if len(imageIDs) == 0 {
		log.Info(fmt.Sprintf("There are no services with a label '%s'", r.cfg.ImageLabel))
	}
	r.drain(ctx, imageIDs, rep, r.processImage)

	log.Info("PROCESS CONFIGS...")
	if len(configIDs) == 0 {
		log.Info(fmt.Sprintf("There are no services with a label '%s.xxx'", r.cfg.ConfigLabel))
	}
	r.drain(ctx, configIDs, rep, r.processConfigs)

	return rep, nil
}

// discover splits services into the image-tracked and config-tracked sets,
// each deduplicated by id and kept in listing order.
func (r *Reconciler) discover(ctx context.Context, svcs []dswarm.Service) (images, configs []string) {
	log := logging.FromContext(ctx)
	seenImage := map[string]bool{}
	seenConfig := map[string]bool{}
	for _, svc := range svcs {
		if !r.selected(ctx, svc.Spec.Name) {
			continue
		}
		in := labels.Parse(svc.Spec.Labels, r.cfg.ImageLabel, r.cfg.ConfigLabel)
		if !in.Tracked() {
			continue
		}
		svcLog := logging.ForService(log, svc.Spec.Name, svc.ID)
		if in.TracksImage && !seenImage[svc.ID] {
			seenImage[svc.ID] = true
			images = append(images, svc.ID)
			svcLog.Info(fmt.Sprintf("Service with the label '%s' found", r.cfg.ImageLabel))
		}
		if len(in.Configs) > 0 && !seenConfig[svc.ID] {
			seenConfig[svc.ID] = true
			configs = append(configs, svc.ID)
			for _, b := range in.Configs {
				svcLog.Info(fmt.Sprintf("Service with the label '%s.%s' found", r.cfg.ConfigLabel, b.Prefix))
			}
		}
	}
	if len(images) == 0 {
		log.Info(fmt.Sprintf("Services with the label '%s' were not found", r.cfg.ImageLabel))
	}
	if len(configs) == 0 {
		log.Info(fmt.Sprintf("Services with the label '%s.xxx' were not found", r.cfg.ConfigLabel))
	}
	return images, configs
}

func (r *Reconciler) selected(ctx context.Context, name string) bool {
	if r.filter == nil {
		return true
	}
	ok, err := r.filter.MatchString(name)
	if err != nil {
		logging.FromContext(ctx).Warn("service filter failed", slog.String("service", name), slog.Any("err", err))
		return false
	}
	return ok
}

type task func(ctx context.Context, id string, rep *status.Report)

// drain runs fn for every id on at most cfg.Workers goroutines and returns
// once all of them finished. A task's failure or panic stays with its service.
func (r *Reconciler) drain(ctx context.Context, ids []string, rep *status.Report, fn task) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			tctx := ctx
			if r.cfg.TaskTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(ctx, r.cfg.TaskTimeout)
				defer cancel()
			}
			defer func() {
				if p := recover(); p != nil {
					logging.FromContext(ctx).Error("service task panicked", slog.String("service_id", id), slog.Any("panic", p))
				}
			}()
			fn(tctx, id, rep)
			return nil
		})
	}
	_ = g.Wait()
}

func logSummary(log *slog.Logger, rep *status.Report) {
	log.Info("cycle complete",
		slog.Int("images_updated", rep.Count(status.PhaseImage, status.OutcomeUpdated)),
		slog.Int("images_unchanged", rep.Count(status.PhaseImage, status.OutcomeUnchanged)),
		slog.Int("images_failed", rep.Count(status.PhaseImage, status.OutcomeFailed)),
		slog.Int("configs_added", rep.Count(status.PhaseConfig, status.OutcomeAdded)),
		slog.Int("configs_updated", rep.Count(status.PhaseConfig, status.OutcomeUpdated)),
		slog.Int("configs_unchanged", rep.Count(status.PhaseConfig, status.OutcomeUnchanged)),
		slog.Int("configs_failed", rep.Count(status.PhaseConfig, status.OutcomeFailed)),
		slog.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
	)
}
