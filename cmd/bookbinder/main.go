package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bookbinder/internal/config"
	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
	"git.home.luguber.info/inful/bookbinder/internal/logfields"
	"git.home.luguber.info/inful/bookbinder/internal/manifest"
	"git.home.luguber.info/inful/bookbinder/internal/metrics"
	"git.home.luguber.info/inful/bookbinder/internal/pipeline"
	"git.home.luguber.info/inful/bookbinder/internal/publisher"
	"git.home.luguber.info/inful/bookbinder/internal/scanner"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Content string `help:"Content root override"`
		Output  string `short:"o" help:"Output directory override"`
		Version int64  `help:"Explicit release version (bypasses the run counter)"`
	} `cmd:"" help:"Run the full pipeline: scan, render, assemble, paginate, publish"`

	Manifest struct {
		Content string `help:"Content root override"`
		Output  string `short:"o" help:"Output directory override"`
	} `cmd:"" help:"Generate only the table-of-contents manifest"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	adapter := berrors.NewCLIErrorAdapter(CLI.Verbose, logger)

	switch ctx.Command() {
	case "build":
		code, err := runBuild()
		if err != nil {
			adapter.Report(err)
			os.Exit(adapter.ExitCodeFor(err))
		}
		os.Exit(code)
	case "manifest":
		if err := runManifest(); err != nil {
			adapter.Report(err)
			os.Exit(adapter.ExitCodeFor(err))
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			adapter.Report(err)
			os.Exit(adapter.ExitCodeFor(err))
		}
		slog.Info("Configuration written", logfields.Path(CLI.Config))
	}
}

// loadConfig loads the configuration and applies CLI overrides.
func loadConfig(content, output string) (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		// Uninitialized setups may run entirely on flags and defaults.
		if os.IsNotExist(unwrapAll(err)) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	if content != "" {
		cfg.ContentDir = content
	}
	if output != "" {
		cfg.OutputDir = output
	}
	return cfg, nil
}

func unwrapAll(err error) error {
	for {
		if be, ok := err.(*berrors.BookbinderError); ok && be.Cause != nil {
			err = be.Cause
			continue
		}
		return err
	}
}

func runBuild() (int, error) {
	cfg, err := loadConfig(CLI.Build.Content, CLI.Build.Output)
	if err != nil {
		return 0, err
	}

	// Version source: explicit flag wins, otherwise the persistent counter.
	var counter publisher.VersionCounter
	if CLI.Build.Version > 0 {
		counter = publisher.StaticCounter(CLI.Build.Version)
	} else {
		sqliteCounter, err := publisher.OpenSQLiteCounter(cfg.Archive.CounterPath)
		if err != nil {
			return 0, berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "open version counter")
		}
		defer sqliteCounter.Close()
		counter = sqliteCounter
	}

	recorder := metrics.NewPrometheusRecorder()
	p, err := pipeline.New(cfg, counter, recorder)
	if err != nil {
		return 0, err
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := p.Run(runCtx)
	if err != nil {
		return 0, err
	}

	printSummary(summary)
	if summary.Partial {
		return berrors.ExitPartial, nil
	}
	return 0, nil
}

func runManifest() error {
	cfg, err := loadConfig(CLI.Manifest.Content, CLI.Manifest.Output)
	if err != nil {
		return err
	}

	tree, warnings, err := scanner.New(cfg.ContentDir, nil).Scan()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		slog.Warn("Chapter skipped", logfields.Chapter(w.Path), slog.String("reason", w.Reason))
	}

	m := manifest.Build(tree)
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return berrors.Wrap(err, berrors.CategoryFileSystem, berrors.SeverityFatal, "create output directory")
	}
	path := filepath.Join(cfg.OutputDir, "manifest.txt")
	if err := m.WriteFile(path); err != nil {
		return err
	}

	slog.Info("Manifest written", logfields.Path(path), logfields.Count(len(m.Entries)))
	fmt.Print(string(m.Serialize()))
	return nil
}

// printSummary reports the run outcome, naming every omitted chapter.
func printSummary(s *pipeline.Summary) {
	fmt.Printf("run %s: version %d, %d/%d chapters, %s\n",
		s.RunID, s.Version, s.Sections, s.Chapters, s.Artifact.FilePath)
	fmt.Printf("  manifest: %s\n  combined: %s\n  sha256: %s\n",
		s.ManifestPath, s.CombinedPath, s.Artifact.SHA256)
	if len(s.Omissions) > 0 {
		fmt.Println("omissions:")
		for _, o := range s.Omissions {
			fmt.Printf("  - %s\n", o)
		}
	}
	if CLI.Verbose && s.Metrics != "" {
		fmt.Println("metrics:")
		fmt.Print(s.Metrics)
	}
}
