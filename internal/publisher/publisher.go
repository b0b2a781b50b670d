// Package publisher places the paginated artifact into a versioned, dated,
// append-only archive.
//
// Archive layout: <root>/<year>/<month>/<product>_<date>_v<version><ext>.
// Within a month, lexical filename order approximates chronological order.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	berrors "git.home.luguber.info/inful/bookbinder/internal/errors"
)

// ReleaseArtifact describes one published, archived book.
type ReleaseArtifact struct {
	VersionID int64     `json:"version_id"`
	Date      time.Time `json:"date"`
	FilePath  string    `json:"file_path"`
	SHA256    string    `json:"sha256"`
}

// Publisher archives finished artifacts. The version counter is an injected
// capability; the clock is injectable for tests.
type Publisher struct {
	ArchiveRoot string
	Product     string
	// Overwrite permits deterministic republishing of an identical
	// version/date name. When false, a collision is a loud failure.
	Overwrite bool
	Clock     func() time.Time
}

// New creates a Publisher with the real clock.
func New(archiveRoot, product string, overwrite bool) *Publisher {
	return &Publisher{ArchiveRoot: archiveRoot, Product: product, Overwrite: overwrite, Clock: time.Now}
}

// Publish copies the artifact into the archive under its versioned name.
// The copy is atomic: a temp file in the destination directory, synced, then
// renamed. An aborted run never leaves a partial entry that could pass for a
// finished one, and a prior artifact is never corrupted.
func (p *Publisher) Publish(ctx context.Context, artifactPath string, counter VersionCounter) (*ReleaseArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version, err := counter.Next(ctx)
	if err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "version counter unavailable")
	}

	now := p.Clock().UTC()
	destDir := filepath.Join(p.ArchiveRoot, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "create archive directory").
			WithContext("path", destDir)
	}

	name := fmt.Sprintf("%s_%s_v%d%s", p.Product, now.Format("2006-01-02"), version, filepath.Ext(artifactPath))
	destPath := filepath.Join(destDir, name)

	if !p.Overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return nil, berrors.New(berrors.CategoryPublish, berrors.SeverityFatal, "archive entry already exists").
				WithContext("path", destPath)
		}
	}

	sum, err := p.copyAtomic(artifactPath, destDir, destPath)
	if err != nil {
		return nil, err
	}

	return &ReleaseArtifact{
		VersionID: version,
		Date:      now,
		FilePath:  destPath,
		SHA256:    sum,
	}, nil
}

// copyAtomic writes src into destPath via a temp file rename and returns the
// content hash.
func (p *Publisher) copyAtomic(src, destDir, destPath string) (string, error) {
	in, err := os.Open(src) // #nosec G304 - pipeline-owned path
	if err != nil {
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "open artifact")
	}
	defer in.Close()

	tmp, err := os.CreateTemp(destDir, ".publish-*")
	if err != nil {
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "create temp archive entry")
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op on success; cleans up the partial file on any failure path.
		_ = os.Remove(tmpName)
	}()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), in); err != nil {
		_ = tmp.Close()
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "write archive entry")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "sync archive entry")
	}
	if err := tmp.Close(); err != nil {
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "close archive entry")
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return "", berrors.Wrap(err, berrors.CategoryPublish, berrors.SeverityFatal, "finalize archive entry").
			WithContext("path", destPath)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
