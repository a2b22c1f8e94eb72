package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/distribution/reference"
	dockerconfig "github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	registrytypes "github.com/docker/docker/api/types/registry"

	"github.com/cmmoran/swarmup/internal/apply"
	"github.com/cmmoran/swarmup/internal/config"
	"github.com/cmmoran/swarmup/internal/logging"
	"github.com/cmmoran/swarmup/internal/swarm"
)

var ErrLoginFailed = errors.New("registry login failed")

// indexServer is the key docker uses for Docker Hub credentials.
const indexServer = "https://index.docker.io/v1/"

// Loginer performs the actual login.
type Loginer interface {
	Login(ctx context.Context, auth registrytypes.AuthConfig) error
}

// CLILogin runs `docker login --password-stdin` so the docker CLI config has
// the credentials too; `--with-registry-auth` reads them from there.
type CLILogin struct {
	Runner apply.Runner
}

func (l CLILogin) Login(ctx context.Context, auth registrytypes.AuthConfig) error {
	args := []string{"login"}
	if auth.ServerAddress != "" {
		args = append(args, auth.ServerAddress)
	}
	args = append(args, "--username", auth.Username, "--password-stdin")
	out, err := l.Runner.Run(ctx, []byte(auth.Password), "docker", args...)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(string(out)); s != "" {
		logging.FromContext(ctx).Info(s)
	}
	return nil
}

// EngineLogin validates credentials against the daemon.
type EngineLogin struct {
	Client swarm.Client
}

func (l EngineLogin) Login(ctx context.Context, auth registrytypes.AuthConfig) error {
	return l.Client.RegistryLogin(ctx, auth)
}

// Auth knows the configured registry credentials and falls back to the docker
// CLI config file for everything else.
type Auth struct {
	creds   config.Registry
	loginer Loginer
	load    func() *configfile.ConfigFile
}

func New(creds config.Registry, loginer Loginer) *Auth {
	return &Auth{
		creds:   creds,
		loginer: loginer,
		load:    func() *configfile.ConfigFile { return dockerconfig.LoadDefaultConfigFile(io.Discard) },
	}
}

// Login logs in when explicit credentials are configured. Its error is the
// one condition the daemon treats as fatal.
func (a *Auth) Login(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if !a.creds.HasCredentials() {
		log.Info("We don't need to login to the registry")
		return nil
	}
	log.Info("registry login", slog.String("registry", a.creds.URL), slog.String("user", a.creds.User))
	err := a.loginer.Login(ctx, registrytypes.AuthConfig{
		Username:      a.creds.User,
		Password:      a.creds.Password,
		ServerAddress: a.creds.URL,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	return nil
}

// EncodedAuth returns the X-Registry-Auth header value for repository, or ""
// when no credentials are known for its registry.
func (a *Auth) EncodedAuth(repository string) (string, error) {
	host := Host(repository)
	if a.creds.HasCredentials() && (a.creds.URL == "" || sameHost(a.creds.URL, host)) {
		return registrytypes.EncodeAuthConfig(registrytypes.AuthConfig{
			Username:      a.creds.User,
			Password:      a.creds.Password,
			ServerAddress: a.creds.URL,
		})
	}
	cf := a.load()
	if cf == nil {
		return "", nil
	}
	ac, err := cf.GetAuthConfig(host)
	if err != nil {
		return "", fmt.Errorf("credentials for %q: %w", host, err)
	}
	if ac.Username == "" && ac.IdentityToken == "" && ac.RegistryToken == "" {
		return "", nil
	}
	return registrytypes.EncodeAuthConfig(registrytypes.AuthConfig{
		Username:      ac.Username,
		Password:      ac.Password,
		Auth:          ac.Auth,
		ServerAddress: ac.ServerAddress,
		IdentityToken: ac.IdentityToken,
		RegistryToken: ac.RegistryToken,
	})
}

// Host returns the credential-store key for the registry serving repository.
func Host(repository string) string {
	named, err := reference.ParseNormalizedNamed(repository)
	if err != nil {
		return repository
	}
	domain := reference.Domain(named)
	if domain == "docker.io" {
		return indexServer
	}
	return domain
}

func sameHost(url, host string) bool {
	trim := func(s string) string {
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return strings.TrimSuffix(s, "/")
	}
	u, h := trim(url), trim(host)
	if u == h {
		return true
	}
	// Docker Hub is spelled many ways.
	hub := func(s string) bool {
		return s == "docker.io" || s == "index.docker.io" || s == "registry-1.docker.io" || s == "index.docker.io/v1"
	}
	return hub(u) && hub(h)
}
