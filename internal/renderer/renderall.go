package renderer

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bookbinder/internal/logfields"
	"git.home.luguber.info/inful/bookbinder/internal/manifest"
	"git.home.luguber.info/inful/bookbinder/internal/retry"
)

// RetryObserver is notified on each retry attempt. Used for metrics; may be nil.
type RetryObserver func(chapterPath string)

// RenderAll renders every leaf manifest entry with bounded concurrency.
// Results are keyed by chapter path, never by completion order: the assembler
// consumes them in manifest order. A failed chapter yields a RenderedPage
// with Err set; rendering other chapters continues.
func RenderAll(ctx context.Context, r PageRenderer, entries []manifest.Entry, workers int, policy retry.Policy, onRetry RetryObserver) map[string]*RenderedPage {
	if workers <= 0 {
		workers = 1
	}

	results := make(chan *RenderedPage, len(entries))
	sem := make(chan struct{}, workers)

	for _, entry := range entries {
		if entry.Section {
			continue
		}
		sem <- struct{}{}
		go func(path string) {
			defer func() { <-sem }()
			results <- renderWithRetry(ctx, r, path, policy, onRetry)
		}(entry.Path)
	}

	pages := make(map[string]*RenderedPage, len(entries))
	for _, entry := range entries {
		if entry.Section {
			continue
		}
		page := <-results
		pages[page.Path] = page
	}
	return pages
}

// renderWithRetry renders one chapter, retrying transient failures per the
// backoff policy. Context cancellation ends retrying immediately.
func renderWithRetry(ctx context.Context, r PageRenderer, path string, policy retry.Policy, onRetry RetryObserver) *RenderedPage {
	var content []byte
	var err error

	for attempt := 0; ; attempt++ {
		content, err = r.RenderPage(ctx, path)
		if err == nil || attempt >= policy.MaxRetries || ctx.Err() != nil {
			break
		}
		if onRetry != nil {
			onRetry(path)
		}
		slog.Warn("Retrying chapter render",
			logfields.Chapter(path),
			slog.Int("attempt", attempt+1),
			logfields.Error(err))
		select {
		case <-time.After(policy.Delay(attempt + 1)):
		case <-ctx.Done():
			return &RenderedPage{Path: path, Err: ctx.Err()}
		}
	}

	if err != nil {
		return &RenderedPage{Path: path, Err: err}
	}
	return &RenderedPage{Path: path, ContentFragment: content}
}
