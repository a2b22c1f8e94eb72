package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/swarmup/internal/config"
)

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarmup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: api\nimageLabel: from.file\nworkers: 3\n"), 0o600))

	t.Setenv("SWARMUP_CONFIG_FILE", path)
	t.Setenv("SWARMUP_IMAGE_LABEL", "from.env")
	t.Setenv("SWARMUP_TIMEOUT", "30")

	require.NoError(t, rootCmd.ParseFlags([]string{"--driver=noop"}))
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("driver", config.DriverCLI)
		rootCmd.PersistentFlags().Lookup("driver").Changed = false
	})

	c, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, config.DriverNoop, c.Driver)
	assert.Equal(t, "from.env", c.ImageLabel)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 30*time.Second, c.Interval)
	assert.Equal(t, config.DefaultConfigLabel, c.ConfigLabel)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("SWARMUP_CONFIG_FILE", "")
	t.Setenv("SWARMUP_DRIVER", "podman")

	_, err := loadConfig(rootCmd)
	assert.ErrorIs(t, err, config.ErrInvalidDriver)
}
