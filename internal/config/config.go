package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

const (
	DefaultConfigLabel = "swarmup.config"
	DefaultImageLabel  = "swarmup.image"
	DefaultInterval    = 10 * time.Second

	DriverCLI  = "cli"
	DriverAPI  = "api"
	DriverNoop = "noop"
)

var (
	ErrInvalidDriver   = errors.New("config: invalid driver")
	ErrInvalidInterval = errors.New("config: interval must be positive")
	ErrEmptyLabel      = errors.New("config: label prefix must not be empty")
)

// Config is built once at startup and handed to every component by value.
type Config struct {
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"logFormat"`
	Driver    string `yaml:"driver"`

	Interval    time.Duration `yaml:"interval"`
	TaskTimeout time.Duration `yaml:"taskTimeout"`
	Workers     int           `yaml:"workers"`

	ConfigLabel   string `yaml:"configLabel"`
	ImageLabel    string `yaml:"imageLabel"`
	ServiceFilter string `yaml:"serviceFilter"`

	Registry Registry `yaml:"registry"`
	Update   Update   `yaml:"update"`
}

type Registry struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HasCredentials reports whether an explicit registry login is configured.
func (r Registry) HasCredentials() bool {
	return r.User != "" && r.Password != ""
}

// Update holds the switches forwarded to image update requests.
type Update struct {
	WithRegistryAuth bool `yaml:"withRegistryAuth"`
	// Wait maps to --detach=false: block until the service converges.
	Wait           bool   `yaml:"wait"`
	Insecure       bool   `yaml:"insecure"`
	NoResolveImage bool   `yaml:"noResolveImage"`
	PinDigest      bool   `yaml:"pinDigest"`
	ImageTemplate  string `yaml:"imageTemplate"`
}

// ForwardAuth reports whether registry credentials go along with image updates.
func (c Config) ForwardAuth() bool {
	return c.Update.WithRegistryAuth || c.Registry.HasCredentials()
}

func Default() Config {
	return Config{
		LogFormat:   "text",
		Driver:      DriverCLI,
		Interval:    DefaultInterval,
		Workers:     runtime.NumCPU(),
		ConfigLabel: DefaultConfigLabel,
		ImageLabel:  DefaultImageLabel,
	}
}

// LoadFile overlays the YAML document at path onto c.
func (c Config) LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return c, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv overlays the SWARMUP_* environment onto c.
func (c Config) FromEnv(lookup LookupFunc) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = parseBool(v)
		}
	}
	var errs []error
	seconds := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Second
		}
	}

	flag("SWARMUP_DEBUG", &c.Debug)
	str("SWARMUP_LOG_FORMAT", &c.LogFormat)
	str("SWARMUP_DRIVER", &c.Driver)
	seconds("SWARMUP_TIMEOUT", &c.Interval)
	seconds("SWARMUP_TASK_TIMEOUT", &c.TaskTimeout)
	if v, ok := lookup("SWARMUP_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("SWARMUP_WORKERS: %w", err))
		} else {
			c.Workers = n
		}
	}
	str("SWARMUP_CONFIG_LABEL", &c.ConfigLabel)
	str("SWARMUP_IMAGE_LABEL", &c.ImageLabel)
	str("SWARMUP_SERVICE_FILTER", &c.ServiceFilter)

	str("SWARMUP_REGISTRY_URL", &c.Registry.URL)
	str("SWARMUP_REGISTRY_USER", &c.Registry.User)
	str("SWARMUP_REGISTRY_PASSWORD", &c.Registry.Password)

	flag("SWARMUP_WITH_REGISTRY_AUTH", &c.Update.WithRegistryAuth)
	flag("SWARMUP_DETACH", &c.Update.Wait)
	flag("SWARMUP_INSECURE", &c.Update.Insecure)
	flag("SWARMUP_NO_RESOLVE_IMAGE", &c.Update.NoResolveImage)
	flag("SWARMUP_PIN_DIGEST", &c.Update.PinDigest)
	str("SWARMUP_IMAGE_TEMPLATE", &c.Update.ImageTemplate)

	return c, errors.Join(errs...)
}

// parseBool accepts the strconv spellings; any other non-empty value counts
// as set, the way the env flags have always behaved.
func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return true
	}
	return b
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverCLI, DriverAPI, DriverNoop:
	default:
		return fmt.Errorf("%w: %q (want cli|api|noop)", ErrInvalidDriver, c.Driver)
	}
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("config: task timeout must not be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if strings.TrimSpace(c.ConfigLabel) == "" || strings.TrimSpace(c.ImageLabel) == "" {
		return ErrEmptyLabel
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Registry.Password != "" {
		c.Registry.Password = "********"
	}
	return c
}
