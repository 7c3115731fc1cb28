package browser

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

// TestNew tests browser construction and options.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		b := New()
		if !b.headless {
			t.Error("expected headless by default")
		}
		if b.userAgent != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", b.userAgent)
		}
		if b.windowWidth != DefaultWindowWidth || b.windowHeight != DefaultWindowHeight {
			t.Errorf("unexpected window size %dx%d", b.windowWidth, b.windowHeight)
		}
		if b.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		b := New(
			WithHeadless(false),
			WithUserAgent("custom-agent"),
			WithUserDataDir("/tmp/profile"),
			WithExecPath("/usr/bin/chromium"),
			WithWindowSize(800, 600),
			WithNoSandbox(false),
			WithLogger(logger),
		)
		if b.headless {
			t.Error("expected headful browser")
		}
		if b.userAgent != "custom-agent" {
			t.Errorf("expected custom agent, got %q", b.userAgent)
		}
		if b.userDataDir != "/tmp/profile" {
			t.Errorf("unexpected user data dir %q", b.userDataDir)
		}
		if b.execPath != "/usr/bin/chromium" {
			t.Errorf("unexpected exec path %q", b.execPath)
		}
		if b.windowWidth != 800 || b.windowHeight != 600 {
			t.Errorf("unexpected window size %dx%d", b.windowWidth, b.windowHeight)
		}
		if b.noSandbox {
			t.Error("expected sandbox to stay enabled")
		}
		if b.logger != logger {
			t.Error("expected custom logger")
		}
	})

	t.Run("ignores empty user agent and invalid window size", func(t *testing.T) {
		t.Parallel()

		b := New(WithUserAgent(""), WithWindowSize(0, -1))
		if b.userAgent != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", b.userAgent)
		}
		if b.windowWidth != DefaultWindowWidth {
			t.Errorf("expected default width, got %d", b.windowWidth)
		}
	})
}

// TestAllocatorOptions tests that optional flags are only added when set.
func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := len(New().allocatorOptions())
	withProfile := len(New(WithUserDataDir("/tmp/p"), WithExecPath("/bin/chrome")).allocatorOptions())

	if withProfile != base+2 {
		t.Errorf("expected 2 extra allocator options, got %d", withProfile-base)
	}
}

// TestBrowserNotStarted tests behavior before Start.
func TestBrowserNotStarted(t *testing.T) {
	t.Parallel()

	b := New()

	if _, err := b.NewTab(); !errors.Is(err, ErrBrowserClosed) {
		t.Errorf("expected ErrBrowserClosed, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("expected nil error closing unstarted browser, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
}

// TestJSString tests JavaScript string quoting.
func TestJSString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`form`, `"form"`},
		{`a[title="My Account"]`, `"a[title=\"My Account\"]"`},
		{`input[name='x']`, `"input[name='x']"`},
		{"", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := jsString(tt.in); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
