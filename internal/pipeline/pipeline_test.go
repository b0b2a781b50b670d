package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbinder/internal/config"
	"git.home.luguber.info/inful/bookbinder/internal/metrics"
	"git.home.luguber.info/inful/bookbinder/internal/publisher"
	"git.home.luguber.info/inful/bookbinder/internal/renderer"
)

// testConfig returns a config rooted in temp directories with the sample
// chapter tree written under the content root.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Product = "handbook"
	cfg.ContentDir = filepath.Join(base, "content")
	cfg.OutputDir = filepath.Join(base, "out")
	cfg.Archive.Root = filepath.Join(base, "archive")
	cfg.Renderer.RetryInitialDelay = "1ms"
	cfg.Renderer.RetryMaxDelay = "2ms"
	cfg.Renderer.MaxRetries = 0

	files := map[string]string{
		"01-intro.md":            "# Intro\n\nWelcome.\n",
		"02-setup/01-install.md": "# Install\n\nSteps.\n",
		"02-setup/02-config.md":  "# Config\n\nKnobs.\n",
	}
	for rel, content := range files {
		abs := filepath.Join(cfg.ContentDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return cfg
}

func TestRun_FullPipeline(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, publisher.StaticCounter(17), metrics.NewPrometheusRecorder())
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, summary.Chapters)
	require.Equal(t, 3, summary.Sections)
	require.False(t, summary.Partial)
	require.Empty(t, summary.Omissions)
	require.Equal(t, int64(17), summary.Version)
	require.NotEmpty(t, summary.RunID)

	// Manifest is published on its own.
	manifestData, err := os.ReadFile(summary.ManifestPath)
	require.NoError(t, err)
	want := "- Intro -> 01-intro.md\n" +
		"- Setup/ -> 02-setup\n" +
		"  - Install -> 02-setup/01-install.md\n" +
		"  - Config -> 02-setup/02-config.md\n"
	require.Equal(t, want, string(manifestData))

	// Combined document has all three chapters in manifest order.
	combined, err := os.ReadFile(summary.CombinedPath)
	require.NoError(t, err)
	doc := string(combined)
	intro := strings.Index(doc, `data-source-path="01-intro.md"`)
	install := strings.Index(doc, `data-source-path="02-setup/01-install.md"`)
	configIdx := strings.Index(doc, `data-source-path="02-setup/02-config.md"`)
	require.True(t, intro >= 0 && install > intro && configIdx > install)

	// Artifact archived under year/month with the version in the name.
	require.NotNil(t, summary.Artifact)
	require.Contains(t, summary.Artifact.FilePath, "handbook_")
	require.Contains(t, summary.Artifact.FilePath, "_v17.html")
	_, err = os.Stat(summary.Artifact.FilePath)
	require.NoError(t, err)

	// Metrics were gathered into the summary.
	require.Contains(t, summary.Metrics, `bookbinder_chapters_total{result="ok"} 3`)
}

// failingRenderer wraps the real renderer, failing one configured chapter.
type failingRenderer struct {
	inner    renderer.PageRenderer
	failPath string
}

func (f *failingRenderer) RenderPage(ctx context.Context, path string) ([]byte, error) {
	if path == f.failPath {
		return nil, errors.New("renderer unavailable")
	}
	return f.inner.RenderPage(ctx, path)
}

func TestRun_OneChapterFails_PartialBook(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, publisher.StaticCounter(1), nil)
	require.NoError(t, err)
	p.Renderer = &failingRenderer{inner: p.Renderer, failPath: "02-setup/01-install.md"}

	summary, err := p.Run(context.Background())
	require.NoError(t, err, "a partial book is produced, not an error")

	require.True(t, summary.Partial)
	require.Equal(t, 2, summary.Sections)
	require.Len(t, summary.Omissions, 1)
	require.Contains(t, summary.Omissions[0], "02-setup/01-install.md")

	combined, err := os.ReadFile(summary.CombinedPath)
	require.NoError(t, err)
	doc := string(combined)
	intro := strings.Index(doc, `data-source-path="01-intro.md"`)
	configIdx := strings.Index(doc, `data-source-path="02-setup/02-config.md"`)
	require.True(t, intro >= 0 && configIdx > intro, "surviving chapters keep manifest order")
}

func TestRun_MissingContentRootIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContentDir = filepath.Join(cfg.ContentDir, "does-not-exist")

	p, err := New(cfg, publisher.StaticCounter(1), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
}

func TestRun_UnwritableArchiveIsFatal(t *testing.T) {
	cfg := testConfig(t)
	// Point the archive root at a path blocked by a regular file.
	blocker := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.Archive.Root = filepath.Join(blocker, "archive")

	p, err := New(cfg, publisher.StaticCounter(1), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
}

func TestRun_SequentialVersionsDoNotCollide(t *testing.T) {
	cfg := testConfig(t)
	counter, err := publisher.OpenSQLiteCounter(filepath.Join(cfg.Archive.Root, "releases.db"))
	require.NoError(t, err)
	defer counter.Close()

	p, err := New(cfg, counter, nil)
	require.NoError(t, err)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.Version+1, second.Version)
	require.NotEqual(t, first.Artifact.FilePath, second.Artifact.FilePath)
	for _, s := range []*Summary{first, second} {
		_, err := os.Stat(s.Artifact.FilePath)
		require.NoError(t, err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, publisher.StaticCounter(1), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err = p.Run(ctx)
	require.Error(t, err)
}
