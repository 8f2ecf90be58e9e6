package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	cfg := GetConfig()
	assert.Equal(t, "http://localhost:8000/api/detect", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	assert.Equal(t, 100, cfg.API.ListLimit)
	assert.Equal(t, 500, cfg.API.MaxListLimit)
	assert.Equal(t, "https://sepolia.etherscan.io", cfg.Explorer.BaseURL)
	assert.Equal(t, "./data/custody.db", cfg.Database.Path)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "investigator", cfg.Actor)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestGetConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()
	viper.Set("api.timeout", "5s")
	viper.Set("actor", "si-sharma")

	cfg := GetConfig()
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "si-sharma", cfg.Actor)
}

func TestErrorFilterWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &errorFilterWriter{&buf}

	for _, line := range []string{
		"[registry] listing (limit 100) shared with a concurrent request\n",
		"[footprint] footprint CASE-1 unavailable (not_found): not found\n",
	} {
		n, err := w.Write([]byte(line))
		assert.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	assert.Empty(t, buf.String())

	_, _ = w.Write([]byte("[registry] Failed to list cases: network error\n"))
	assert.Contains(t, buf.String(), "Failed to list cases")
}

func TestResolvePathRelativeToBase(t *testing.T) {
	base := filepath.FromSlash("/srv/console")
	assert.Equal(t, filepath.Join(base, "data", "custody.db"), resolvePathRelativeToBase(base, "./data/custody.db"))
	abs := filepath.FromSlash("/var/lib/custody.db")
	if filepath.IsAbs(abs) {
		assert.Equal(t, abs, resolvePathRelativeToBase(base, abs))
	}
}

func TestVersionText(t *testing.T) {
	SetVersion("", "")
	assert.Equal(t, "Evidence Console dev\n", versionText())

	SetVersion("1.2.0", "2026-10-14")
	t.Cleanup(func() { SetVersion("", "") })
	assert.Equal(t, "Evidence Console 1.2.0\nBuild Time: 2026-10-14\n", versionText())
}
