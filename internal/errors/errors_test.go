package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestBookbinderError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BookbinderError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load config"),
			expected: "config (fatal): failed to load config: file not found",
		},
		{
			name:     "stage error",
			err:      New(CategoryPublish, SeverityFatal, "archive unwritable"),
			expected: "publish (fatal): archive unwritable",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestBookbinderError_WithContext(t *testing.T) {
	err := New(CategoryRender, SeverityWarning, "render failed").
		WithContext("chapter", "02-setup/01-install.md").
		WithContext("attempt", 2)

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}
	if err.Context["chapter"] != "02-setup/01-install.md" {
		t.Errorf("Context[chapter] = %v, want 02-setup/01-install.md", err.Context["chapter"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("Context[attempt] = %v, want 2", err.Context["attempt"])
	}
}

func TestBookbinderError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CategoryPublish, SeverityFatal, "write artifact")

	if !stdErrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestIsCategory(t *testing.T) {
	err := New(CategoryScan, SeverityError, "unreadable directory")

	if !IsCategory(err, CategoryScan) {
		t.Error("IsCategory(CategoryScan) = false, want true")
	}
	if IsCategory(err, CategoryPublish) {
		t.Error("IsCategory(CategoryPublish) = true, want false")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryScan) {
		t.Error("plain error should not match any category")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := WrapRetryable(fmt.Errorf("timeout"), CategoryRender, SeverityError, "renderer busy")
	permanent := New(CategoryRender, SeverityError, "bad input")

	if !IsRetryable(retryable) {
		t.Error("WrapRetryable error should be retryable")
	}
	if IsRetryable(permanent) {
		t.Error("New error should not be retryable")
	}
}

func TestGetCategory(t *testing.T) {
	if got := GetCategory(New(CategoryAssemble, SeverityError, "x")); got != CategoryAssemble {
		t.Errorf("GetCategory = %v, want %v", got, CategoryAssemble)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != CategoryInternal {
		t.Errorf("GetCategory(plain) = %v, want %v", got, CategoryInternal)
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{New(CategoryValidation, SeverityWarning, "bad flag"), 2},
		{New(CategoryConfig, SeverityFatal, "bad config"), 7},
		{New(CategoryScan, SeverityFatal, "missing root"), 9},
		{New(CategoryPaginate, SeverityFatal, "paginator failed"), 11},
		{New(CategoryPublish, SeverityFatal, "archive unwritable"), 12},
		{fmt.Errorf("plain"), 1},
	}

	for _, test := range tests {
		if got := adapter.ExitCodeFor(test.err); got != test.code {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", test.err, got, test.code)
		}
	}
}
