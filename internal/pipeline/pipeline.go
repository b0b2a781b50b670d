// Package pipeline orchestrates one full publication run: scan → manifest →
// render → assemble → paginate → publish. Data flows strictly forward as
// typed in-memory structures; no stage re-enters an earlier one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bookbinder/internal/assembler"
	"git.home.luguber.info/inful/bookbinder/internal/config"
	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
	"git.home.luguber.info/inful/bookbinder/internal/logfields"
	"git.home.luguber.info/inful/bookbinder/internal/manifest"
	"git.home.luguber.info/inful/bookbinder/internal/metrics"
	"git.home.luguber.info/inful/bookbinder/internal/paginator"
	"git.home.luguber.info/inful/bookbinder/internal/publisher"
	"git.home.luguber.info/inful/bookbinder/internal/renderer"
	"git.home.luguber.info/inful/bookbinder/internal/retry"
	"git.home.luguber.info/inful/bookbinder/internal/scanner"
)

// Stage names used in logs and metrics.
const (
	StageScan     = "scan"
	StageManifest = "manifest"
	StageRender   = "render"
	StageAssemble = "assemble"
	StagePaginate = "paginate"
	StagePublish  = "publish"
)

// Pipeline wires the stages together. Renderer, Paginator, Counter and
// Recorder are injected; production wiring happens in the CLI.
type Pipeline struct {
	Config    *config.Config
	Renderer  renderer.PageRenderer
	Paginator paginator.Paginator
	Counter   publisher.VersionCounter
	Recorder  metrics.Recorder
}

// New builds a pipeline with the built-in renderer and the configured
// paginator. The version counter must be supplied by the caller.
func New(cfg *config.Config, counter publisher.VersionCounter, rec metrics.Recorder) (*Pipeline, error) {
	pag, err := paginator.ForConfig(cfg.Paginator)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		Config:    cfg,
		Renderer:  renderer.NewGoldmarkRenderer(cfg.ContentDir),
		Paginator: pag,
		Counter:   counter,
		Recorder:  rec,
	}, nil
}

// Summary is the user-visible result of one run. Every non-fatal anomaly is
// listed in Omissions; Partial marks a run that produced an artifact with
// chapters missing.
type Summary struct {
	RunID        string
	Version      int64
	Chapters     int // leaf manifest entries
	Sections     int // chapter sections included in the combined document
	ManifestPath string
	CombinedPath string
	Artifact     *publisher.ReleaseArtifact
	Omissions    []string
	Partial      bool
	Duration     time.Duration
	Metrics      string
}

// Run executes the whole pipeline once. Fatal errors abort with the failing
// stage in the error category; non-fatal anomalies accumulate in the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	log := slog.With(logfields.RunID(summary.RunID))

	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryFileSystem, berrors.SeverityFatal, "create output directory").
			WithContext("path", p.Config.OutputDir)
	}

	// Stage 1: scan the chapter tree.
	tree, scanWarnings, err := p.runScan(ctx, log)
	if err != nil {
		return nil, err
	}
	for _, w := range scanWarnings {
		summary.Omissions = append(summary.Omissions, fmt.Sprintf("scan: %s: %s", w.Path, w.Reason))
		p.Recorder.IncChapter(metrics.ResultSkipped)
	}

	// Stage 2: build and persist the manifest.
	m, err := p.runManifest(log, tree, summary)
	if err != nil {
		return nil, err
	}
	summary.Chapters = len(m.Leaves())

	// Stage 3: render all chapters concurrently; results keyed by path.
	pages := p.runRender(ctx, log, m)

	// Stage 4: assemble the combined document. Rendering is complete or
	// definitively failed by now; assembly is the barrier.
	combined, err := p.runAssemble(log, m, pages, summary)
	if err != nil {
		return nil, err
	}

	// Stage 5: paginate into the book artifact.
	bookPath, err := p.runPaginate(ctx, log, combined)
	if err != nil {
		return nil, err
	}

	// Stage 6: publish into the archive.
	artifact, err := p.runPublish(ctx, log, bookPath)
	if err != nil {
		return nil, err
	}
	summary.Artifact = artifact
	summary.Version = artifact.VersionID

	summary.Partial = len(summary.Omissions) > 0
	summary.Duration = time.Since(start)

	if dump, err := p.Recorder.Dump(); err == nil {
		summary.Metrics = dump
	}

	log.Info("Run complete",
		logfields.Version(summary.Version),
		logfields.Count(summary.Sections),
		slog.Bool("partial", summary.Partial),
		logfields.DurationMS(float64(summary.Duration.Milliseconds())))
	return summary, nil
}

func (p *Pipeline) runScan(ctx context.Context, log *slog.Logger) ([]*scanner.ChapterNode, []scanner.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	defer p.timeStage(StageScan)()

	log.Info("Scanning content root", logfields.Stage(StageScan), logfields.Path(p.Config.ContentDir))
	tree, warnings, err := scanner.New(p.Config.ContentDir, nil).Scan()
	if err != nil {
		return nil, nil, err
	}
	return tree, warnings, nil
}

func (p *Pipeline) runManifest(log *slog.Logger, tree []*scanner.ChapterNode, summary *Summary) (*manifest.Manifest, error) {
	defer p.timeStage(StageManifest)()

	m := manifest.Build(tree)
	summary.ManifestPath = filepath.Join(p.Config.OutputDir, "manifest.txt")
	if err := m.WriteFile(summary.ManifestPath); err != nil {
		return nil, err
	}

	if data, err := m.ToJSON(); err == nil {
		jsonPath := filepath.Join(p.Config.OutputDir, "manifest.json")
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			log.Warn("Failed to write JSON manifest", logfields.Path(jsonPath), logfields.Error(err))
		}
	}

	log.Info("Manifest built", logfields.Stage(StageManifest), logfields.Count(len(m.Entries)))
	return m, nil
}

func (p *Pipeline) runRender(ctx context.Context, log *slog.Logger, m *manifest.Manifest) map[string]*renderer.RenderedPage {
	defer p.timeStage(StageRender)()

	policy := retry.FromConfig(p.Config.Renderer)
	log.Info("Rendering chapters",
		logfields.Stage(StageRender),
		logfields.Count(len(m.Leaves())),
		slog.Int("workers", p.Config.Renderer.Workers))

	pages := renderer.RenderAll(ctx, p.Renderer, m.Entries, p.Config.Renderer.Workers, policy,
		func(string) { p.Recorder.IncRetry(StageRender) })

	for _, page := range pages {
		if page.Err != nil {
			p.Recorder.IncChapter(metrics.ResultFailed)
			log.Warn("Chapter render failed", logfields.Chapter(page.Path), logfields.Error(page.Err))
		} else {
			p.Recorder.IncChapter(metrics.ResultOK)
		}
	}
	return pages
}

func (p *Pipeline) runAssemble(log *slog.Logger, m *manifest.Manifest, pages map[string]*renderer.RenderedPage, summary *Summary) (string, error) {
	defer p.timeStage(StageAssemble)()

	res, err := assembler.Assemble(m, pages, assembler.Options{
		ProductTitle: p.Config.Product,
		MissingPage:  p.Config.Assembly.MissingPage,
	})
	if err != nil {
		return "", err
	}
	summary.Sections = res.Sections
	for _, w := range res.Warnings {
		summary.Omissions = append(summary.Omissions, fmt.Sprintf("assemble: %s: %s", w.Path, w.Reason))
	}

	combinedPath := filepath.Join(p.Config.OutputDir, "book.html")
	if err := os.WriteFile(combinedPath, res.Document, 0o644); err != nil {
		return "", berrors.Wrap(err, berrors.CategoryAssemble, berrors.SeverityFatal, "write combined document").
			WithContext("path", combinedPath)
	}
	summary.CombinedPath = combinedPath

	log.Info("Combined document assembled",
		logfields.Stage(StageAssemble),
		logfields.Count(res.Sections),
		slog.Int("omitted", res.Omitted))
	return combinedPath, nil
}

func (p *Pipeline) runPaginate(ctx context.Context, log *slog.Logger, combinedPath string) (string, error) {
	defer p.timeStage(StagePaginate)()

	bookPath := filepath.Join(p.Config.OutputDir, p.Config.Product+p.Config.Paginator.Extension)
	log.Info("Paginating", logfields.Stage(StagePaginate), logfields.Path(bookPath))
	if err := p.Paginator.Paginate(ctx, combinedPath, bookPath); err != nil {
		return "", err
	}
	return bookPath, nil
}

func (p *Pipeline) runPublish(ctx context.Context, log *slog.Logger, bookPath string) (*publisher.ReleaseArtifact, error) {
	defer p.timeStage(StagePublish)()

	pub := publisher.New(p.Config.Archive.Root, p.Config.Product, p.Config.Archive.Overwrite)
	artifact, err := pub.Publish(ctx, bookPath, p.Counter)
	if err != nil {
		return nil, err
	}
	log.Info("Release archived",
		logfields.Stage(StagePublish),
		logfields.Version(artifact.VersionID),
		logfields.Path(artifact.FilePath))
	return artifact, nil
}

// timeStage records a stage duration on return.
func (p *Pipeline) timeStage(name string) func() {
	start := time.Now()
	return func() { p.Recorder.ObserveStageDuration(name, time.Since(start)) }
}
