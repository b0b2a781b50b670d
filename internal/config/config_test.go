package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MinimalConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "product: fieldguide\ncontent_dir: ./chapters\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "fieldguide", cfg.Product)
	require.Equal(t, "./chapters", cfg.ContentDir)
	require.Equal(t, "./out", cfg.OutputDir)
	require.Equal(t, 4, cfg.Renderer.Workers)
	require.Equal(t, RetryBackoffLinear, cfg.Renderer.RetryBackoff)
	require.Equal(t, MissingPagePlaceholder, cfg.Assembly.MissingPage)
	require.Equal(t, ".html", cfg.Paginator.Extension)

	initial, maxDelay := cfg.Renderer.RetryDelays()
	require.Equal(t, time.Second, initial)
	require.Equal(t, 30*time.Second, maxDelay)
}

func TestLoad_PaginatorCommand_DefaultsToPDFExtension(t *testing.T) {
	path := writeConfig(t, `
paginator:
  command: ["weasyprint", "{input}", "{output}"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ".pdf", cfg.Paginator.Extension)
}

func TestLoad_InvalidMissingPagePolicy_Fails(t *testing.T) {
	path := writeConfig(t, "assembly:\n  missing_page: explode\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing_page")
}

func TestLoad_InvalidRetryDelay_Fails(t *testing.T) {
	path := writeConfig(t, "renderer:\n  retry_initial_delay: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "retry_initial_delay")
}

func TestLoad_MaxDelayBelowInitial_Fails(t *testing.T) {
	path := writeConfig(t, "renderer:\n  retry_initial_delay: 10s\n  retry_max_delay: 1s\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile_Fails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "content_dir: ./a\n")
	t.Setenv("BOOKBINDER_CONTENT_DIR", "./b")
	t.Setenv("BOOKBINDER_WORKERS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./b", cfg.ContentDir)
	require.Equal(t, 9, cfg.Renderer.Workers)
}

func TestInit_WritesStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "handbook", cfg.Product)

	// Second init without force must refuse.
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}
