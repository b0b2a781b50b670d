// Package config loads and validates the bookbinder configuration file.
//
// Configuration is YAML with a small set of environment overrides. A .env or
// .env.local file in the working directory is loaded first (never overriding
// variables already present in the process environment).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
)

// RetryBackoffMode selects the backoff growth curve for render retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// MissingPagePolicy controls how the assembler handles a chapter whose render
// is missing or failed.
type MissingPagePolicy string

const (
	MissingPagePlaceholder MissingPagePolicy = "placeholder"
	MissingPageOmit        MissingPagePolicy = "omit"
)

// Config is the top-level bookbinder configuration.
type Config struct {
	Product    string          `yaml:"product"`
	ContentDir string          `yaml:"content_dir"`
	OutputDir  string          `yaml:"output_dir"`
	Archive    ArchiveConfig   `yaml:"archive"`
	Renderer   RendererConfig  `yaml:"renderer"`
	Assembly   AssemblyConfig  `yaml:"assembly"`
	Paginator  PaginatorConfig `yaml:"paginator"`
}

// ArchiveConfig configures the release archive.
type ArchiveConfig struct {
	Root string `yaml:"root"`
	// Overwrite allows republishing the same version/date deterministically.
	// When false, a name collision in the archive is a loud failure.
	Overwrite bool `yaml:"overwrite"`
	// CounterPath is the sqlite database holding the monotonic version counter.
	CounterPath string `yaml:"counter_path"`
}

// RendererConfig configures page rendering concurrency and retries.
// Delays are duration strings ("1s", "500ms") parsed during validation.
type RendererConfig struct {
	Workers           int              `yaml:"workers"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"` // fixed|linear|exponential (default linear)
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
	MaxRetries        int              `yaml:"max_retries"`
}

// RetryDelays parses the configured delay strings. Call after Validate.
func (r RendererConfig) RetryDelays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(r.RetryInitialDelay)
	maxDelay, _ = time.ParseDuration(r.RetryMaxDelay)
	return initial, maxDelay
}

// AssemblyConfig configures combined-document assembly.
type AssemblyConfig struct {
	MissingPage MissingPagePolicy `yaml:"missing_page"`
}

// PaginatorConfig configures the external paginator command. The command is
// an argv slice; {input} and {output} placeholders are substituted at run
// time. An empty command selects the copy paginator (the combined HTML is
// the book).
type PaginatorConfig struct {
	Command   []string `yaml:"command"`
	Extension string   `yaml:"extension"`
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path) // #nosec G304 - path is an operator-supplied config location
	if err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryConfig, berrors.SeverityFatal, "read configuration file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryConfig, berrors.SeverityFatal, "parse configuration file")
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads .env/.env.local if present. godotenv.Load never
// overrides variables already set in the process environment.
func loadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnvOverrides maps BOOKBINDER_* environment variables onto the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BOOKBINDER_CONTENT_DIR"); v != "" {
		c.ContentDir = v
	}
	if v := os.Getenv("BOOKBINDER_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("BOOKBINDER_ARCHIVE_ROOT"); v != "" {
		c.Archive.Root = v
	}
	if v := os.Getenv("BOOKBINDER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Renderer.Workers = n
		}
	}
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Product == "" {
		c.Product = "handbook"
	}
	if c.ContentDir == "" {
		c.ContentDir = "./content"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./out"
	}
	if c.Archive.Root == "" {
		c.Archive.Root = "./archive"
	}
	if c.Archive.CounterPath == "" {
		c.Archive.CounterPath = "./archive/releases.db"
	}
	if c.Renderer.Workers <= 0 {
		c.Renderer.Workers = 4
	}
	if c.Renderer.RetryBackoff == "" {
		c.Renderer.RetryBackoff = RetryBackoffLinear
	}
	if c.Renderer.RetryInitialDelay == "" {
		c.Renderer.RetryInitialDelay = "1s"
	}
	if c.Renderer.RetryMaxDelay == "" {
		c.Renderer.RetryMaxDelay = "30s"
	}
	if c.Renderer.MaxRetries < 0 {
		c.Renderer.MaxRetries = 0
	}
	if c.Assembly.MissingPage == "" {
		c.Assembly.MissingPage = MissingPagePlaceholder
	}
	if c.Paginator.Extension == "" {
		if len(c.Paginator.Command) > 0 {
			c.Paginator.Extension = ".pdf"
		} else {
			c.Paginator.Extension = ".html"
		}
	}
}

// Validate checks the configuration for values no defaulting can repair.
func (c *Config) Validate() error {
	switch c.Assembly.MissingPage {
	case MissingPagePlaceholder, MissingPageOmit:
	default:
		return berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
			fmt.Sprintf("assembly.missing_page must be %q or %q, got %q",
				MissingPagePlaceholder, MissingPageOmit, c.Assembly.MissingPage))
	}
	switch c.Renderer.RetryBackoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
			fmt.Sprintf("renderer.retry_backoff must be fixed, linear or exponential, got %q", c.Renderer.RetryBackoff))
	}
	initDur, err := time.ParseDuration(c.Renderer.RetryInitialDelay)
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryConfig, berrors.SeverityFatal,
			fmt.Sprintf("invalid renderer.retry_initial_delay: %s", c.Renderer.RetryInitialDelay))
	}
	maxDur, err := time.ParseDuration(c.Renderer.RetryMaxDelay)
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryConfig, berrors.SeverityFatal,
			fmt.Sprintf("invalid renderer.retry_max_delay: %s", c.Renderer.RetryMaxDelay))
	}
	if maxDur < initDur {
		return berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
			"renderer.retry_max_delay must be >= renderer.retry_initial_delay")
	}
	if len(c.Paginator.Command) == 1 {
		return berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
			"paginator.command must include at least one argument beyond the binary ({input}/{output})")
	}
	return nil
}

// Default returns a fully defaulted configuration without reading a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

const starterConfig = `# bookbinder configuration
product: handbook

# Directory tree of markdown chapters. Numeric filename prefixes (01-, 02-)
# control ordering; nested directories become sections.
content_dir: ./content

# Per-run outputs: manifest.txt, manifest.json, book.html, and the paginated book.
output_dir: ./out

archive:
  root: ./archive
  overwrite: false
  counter_path: ./archive/releases.db

renderer:
  workers: 4
  retry_backoff: linear
  retry_initial_delay: 1s
  retry_max_delay: 30s
  max_retries: 2

assembly:
  # placeholder: failed chapters appear as a visible placeholder section
  # omit: failed chapters are dropped (still reported in the run summary)
  missing_page: placeholder

paginator:
  # External command converting the combined HTML into a fixed-layout book.
  # Leave empty to publish the combined HTML itself.
  # command: ["weasyprint", "{input}", "{output}"]
  extension: .html
`

// Init writes a commented starter configuration file.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return berrors.New(berrors.CategoryConfig, berrors.SeverityFatal,
				fmt.Sprintf("configuration file %s already exists (use --force to overwrite)", path))
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return berrors.Wrap(err, berrors.CategoryConfig, berrors.SeverityFatal, "write configuration file")
	}
	return nil
}
