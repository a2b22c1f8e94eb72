package apply

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	dswarm "github.com/docker/docker/api/types/swarm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/diff"
	"github.com/cmmoran/swarmup/internal/swarm/swarmtest"
)

type call struct {
	Stdin string
	Name  string
	Args  []string
}

// recordingRunner records commands and fails when err is set.
type recordingRunner struct {
	mu    sync.Mutex
	calls []call
	out   []byte
	err   error
}

func (r *recordingRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Stdin: string(stdin), Name: name, Args: args})
	return r.out, r.err
}

func TestConfigArgs(t *testing.T) {
	tests := []struct {
		name   string
		change ConfigChange
		want   []string
	}{
		{
			name:   "add",
			change: ConfigChange{ConfigName: "frontend_v3", Target: "/etc/nginx/conf.d/app.conf"},
			want:   []string{"service", "update", "--config-add", "source=frontend_v3,target=/etc/nginx/conf.d/app.conf", "svc1"},
		},
		{
			name:   "replace",
			change: ConfigChange{Remove: "frontend_v2", ConfigName: "frontend_v3", Target: "/etc/nginx/conf.d/app.conf"},
			want:   []string{"service", "update", "--config-rm", "frontend_v2", "--config-add", "source=frontend_v3,target=/etc/nginx/conf.d/app.conf", "svc1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigArgs("svc1", tt.change))
		})
	}
}

func TestImageArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "defaults",
			want: []string{"service", "update", "--detach=true", "--image", "app:stable", "svc1"},
		},
		{
			name: "all switches",
			opts: Options{WithRegistryAuth: true, Wait: true, Insecure: true, NoResolveImage: true},
			want: []string{"service", "update", "--with-registry-auth", "--detach=false", "--insecure", "--no-resolve-image", "--image", "app:stable", "svc1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImageArgs("svc1", "app:stable", tt.opts))
		})
	}
}

func TestCLIApplier(t *testing.T) {
	svc := swarmtest.Service("svc1", "web", "app:stable", nil)

	t.Run("success", func(t *testing.T) {
		r := &recordingRunner{out: []byte("svc1\noverall progress: 1 out of 1 tasks\n")}
		a := NewCLIApplier(r, Options{WithRegistryAuth: true})

		require.NoError(t, a.ApplyConfigChange(context.Background(), svc, ConfigChangeFor(diff.Resolution{
			Action: diff.ActionAdd, ConfigName: "frontend_v3", ConfigPath: "/app.conf",
		})))
		require.NoError(t, a.ApplyImageChange(context.Background(), svc, "app:stable"))

		require.Len(t, r.calls, 2)
		assert.Equal(t, "docker", r.calls[0].Name)
		assert.Equal(t, []string{"service", "update", "--config-add", "source=frontend_v3,target=/app.conf", "svc1"}, r.calls[0].Args)
		assert.Equal(t, []string{"service", "update", "--with-registry-auth", "--detach=true", "--image", "app:stable", "svc1"}, r.calls[1].Args)
	})

	t.Run("failure surfaces raw diagnostics", func(t *testing.T) {
		cmdErr := &CommandError{Args: []string{"docker"}, ExitCode: 1, Stderr: "Error: No such config: frontend_v9"}
		r := &recordingRunner{err: cmdErr}
		err := NewCLIApplier(r, Options{}).ApplyImageChange(context.Background(), svc, "app:stable")

		var ce *CommandError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, err.Error(), "No such config: frontend_v9")
		assert.Len(t, r.calls, 1, "never retried")
	})
}

func TestAPIApplierConfigChange(t *testing.T) {
	svc := swarmtest.Service("svc1", "web", "app:stable", nil,
		swarmtest.ConfigRef("N", "nginx_v1", "/etc/nginx/nginx.conf"),
		swarmtest.ConfigRef("X", "frontend_v2", "/app.conf"),
	)
	fake := &swarmtest.Fake{Services: []dswarm.Service{svc}}
	a := NewAPIApplier(fake, nil, Options{})

	err := a.ApplyConfigChange(context.Background(), svc, ConfigChange{
		Remove: "frontend_v2", ConfigID: "Y", ConfigName: "frontend_v3", Target: "/app.conf",
	})
	require.NoError(t, err)

	require.Len(t, fake.Updates, 1)
	got := fake.Updates[0].Spec.TaskTemplate.ContainerSpec.Configs
	require.Len(t, got, 2)
	assert.Equal(t, "nginx_v1", got[0].ConfigName)
	assert.Equal(t, swarmtest.ConfigRef("Y", "frontend_v3", "/app.conf"), got[1])

	// The caller's copy is untouched.
	assert.Len(t, svc.Spec.TaskTemplate.ContainerSpec.Configs, 2)
	assert.Equal(t, "frontend_v2", svc.Spec.TaskTemplate.ContainerSpec.Configs[1].ConfigName)
}

type staticAuth string

func (s staticAuth) EncodedAuth(string) (string, error) { return string(s), nil }

func TestAPIApplierImageChange(t *testing.T) {
	svc := swarmtest.Service("svc1", "web", "registry.example.com/app:stable", nil)
	fake := &swarmtest.Fake{Services: []dswarm.Service{svc}}
	a := NewAPIApplier(fake, staticAuth("token"), Options{WithRegistryAuth: true, NoResolveImage: true})

	require.NoError(t, a.ApplyImageChange(context.Background(), svc, "registry.example.com/app:stable"))

	require.Len(t, fake.Updates, 1)
	u := fake.Updates[0]
	assert.Equal(t, "registry.example.com/app:stable", u.Spec.TaskTemplate.ContainerSpec.Image)
	assert.Equal(t, "token", u.Opts.EncodedRegistryAuth)
	assert.False(t, u.Opts.QueryRegistry)
}

func TestAPIApplierWait(t *testing.T) {
	begin := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name    string
		state   dswarm.UpdateState
		started time.Time
		wantErr error
	}{
		{name: "completed", state: dswarm.UpdateStateCompleted, started: begin},
		{name: "rolled back", state: dswarm.UpdateStateRollbackCompleted, started: begin.Add(time.Second), wantErr: ErrUpdateNotConverged},
		{name: "paused", state: dswarm.UpdateStatePaused, started: begin, wantErr: ErrUpdateNotConverged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := swarmtest.Service("svc1", "web", "app:stable", nil)
			started := tt.started
			fake := &swarmtest.Fake{
				Services: []dswarm.Service{svc},
				InspectHook: func(s *dswarm.Service) {
					s.UpdateStatus = &dswarm.UpdateStatus{State: tt.state, StartedAt: &started}
				},
			}
			a := NewAPIApplier(fake, nil, Options{Wait: true})
			a.poll = time.Millisecond
			a.now = func() time.Time { return begin }

			err := a.ApplyImageChange(context.Background(), svc, "app:stable")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("stale status keeps polling until context ends", func(t *testing.T) {
		svc := swarmtest.Service("svc1", "web", "app:stable", nil)
		old := begin.Add(-time.Hour)
		fake := &swarmtest.Fake{
			Services: []dswarm.Service{svc},
			InspectHook: func(s *dswarm.Service) {
				s.UpdateStatus = &dswarm.UpdateStatus{State: dswarm.UpdateStateCompleted, StartedAt: &old}
			},
		}
		a := NewAPIApplier(fake, nil, Options{Wait: true})
		a.poll = time.Millisecond
		a.now = func() time.Time { return begin }

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, a.ApplyImageChange(ctx, svc, "app:stable"), context.DeadlineExceeded)
	})
}

func TestNew(t *testing.T) {
	c := config.Default()
	for driver, want := range map[string]Applier{
		config.DriverCLI:  &CLIApplier{},
		config.DriverAPI:  &APIApplier{},
		config.DriverNoop: &NoopApplier{},
	} {
		c.Driver = driver
		got, err := New(c, &swarmtest.Fake{}, &recordingRunner{}, nil)
		require.NoError(t, err)
		assert.IsType(t, want, got)
	}

	c.Driver = "kubectl"
	_, err := New(c, nil, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidDriver)
}

func TestNoopApplier(t *testing.T) {
	svc := swarmtest.Service("svc1", "web", "app:stable", nil)
	n := NewNoopApplier()
	assert.NoError(t, n.ApplyConfigChange(context.Background(), svc, ConfigChange{ConfigName: "a", Target: "/a"}))
	assert.NoError(t, n.ApplyImageChange(context.Background(), svc, "app:stable"))
}

// TestHelperProcess is re-executed by fakeExecCommand in place of docker.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stderr.WriteString("Error response from daemon: rpc error: update out of sequence")
	os.Exit(1)
}

func fakeExecCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func TestExecRunnerFailure(t *testing.T) {
	execCommandContext = fakeExecCommand
	defer func() { execCommandContext = exec.CommandContext }()

	_, err := ExecRunner{}.Run(context.Background(), []byte("secret"), "docker", "service", "update", "svc1")

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.ExitCode)
	assert.Equal(t, "Error response from daemon: rpc error: update out of sequence", ce.Stderr)
	assert.Equal(t, []string{"docker", "service", "update", "svc1"}, ce.Args)
}
