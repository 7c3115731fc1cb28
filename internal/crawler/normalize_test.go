package crawler

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trailing slash removed", "https://example.test/a/", "https://example.test/a"},
		{"root slash removed", "https://example.test/", "https://example.test"},
		{"scheme and host lower-cased", "HTTPS://Example.TEST/Path", "https://example.test/Path"},
		{"default https port dropped", "https://example.test:443/a", "https://example.test/a"},
		{"default http port dropped", "http://example.test:80", "http://example.test"},
		{"other port kept", "http://example.test:8080/x", "http://example.test:8080/x"},
		{"query and fragment dropped", "https://example.test/list?page=2#top", "https://example.test/list"},
		{"ipv6 host", "http://[::1]:80/x", "http://[::1]/x"},
		{"ipv6 host with port", "http://[::1]:8080/x", "http://[::1]:8080/x"},
		{"relative returned unchanged", "/relative/path", "/relative/path"},
		{"garbage returned unchanged", "not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizerKeepQuery(t *testing.T) {
	t.Parallel()

	n := Normalizer{KeepQuery: true}

	if got := n.Normalize("https://example.test/list/?page=2#top"); got != "https://example.test/list?page=2" {
		t.Errorf("expected query to be kept, got %q", got)
	}
	if got := n.Normalize("https://example.test/list"); got != "https://example.test/list" {
		t.Errorf("expected no question mark without a query, got %q", got)
	}
	if Normalize("https://example.test/list?page=2") != Normalize("https://example.test/list?page=3") {
		t.Error("expected default normalizer to ignore queries")
	}
}

func TestScopePrefixFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed string
		want string
	}{
		{"https://Example.test:443/docs/intro", "https://example.test"},
		{"http://example.test:8080/", "http://example.test:8080"},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			t.Parallel()

			if got := ScopePrefixFor(tt.seed); got != tt.want {
				t.Errorf("ScopePrefixFor(%q) = %q, want %q", tt.seed, got, tt.want)
			}
		})
	}
}

func TestNormalizeSeed(t *testing.T) {
	t.Parallel()

	t.Run("valid seeds", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			raw  string
			want string
		}{
			{"https://example.test", "https://example.test"},
			{"  http://example.test/docs  ", "http://example.test/docs"},
			{"example.test/docs", "https://example.test/docs"},
			{"https://example.test/page#section", "https://example.test/page"},
		}
		for _, tt := range tests {
			got, err := NormalizeSeed(tt.raw)
			if err != nil {
				t.Errorf("NormalizeSeed(%q) unexpected error: %v", tt.raw, err)
				continue
			}
			if got != tt.want {
				t.Errorf("NormalizeSeed(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		}
	})

	t.Run("invalid seeds", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"", "   ", "ftp://example.test", "https://", "http://%zz"} {
			if _, err := NormalizeSeed(raw); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("NormalizeSeed(%q) expected ErrInvalidSeed, got %v", raw, err)
			}
		}
	})
}

func TestNormalizeScope(t *testing.T) {
	t.Parallel()

	t.Run("valid prefixes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			raw  string
			want string
		}{
			{"example.test", "https://example.test"},
			{"Example.test/Docs/", "https://example.test/Docs"},
			{"http://example.test:80/docs", "http://example.test/docs"},
			{" https://example.test/docs#top ", "https://example.test/docs"},
		}
		for _, tt := range tests {
			got, err := NormalizeScope(tt.raw)
			if err != nil {
				t.Errorf("NormalizeScope(%q) unexpected error: %v", tt.raw, err)
				continue
			}
			if got != tt.want {
				t.Errorf("NormalizeScope(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		}
	})

	t.Run("invalid prefixes", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"", "  ", "ftp://example.test", "https://", "http://%zz"} {
			if _, err := NormalizeScope(raw); !errors.Is(err, ErrInvalidScope) {
				t.Errorf("NormalizeScope(%q) expected ErrInvalidScope, got %v", raw, err)
			}
		}
	})
}

func TestScopeCovers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		raw    string
		want   bool
	}{
		{"same origin", "https://example.test", "https://example.test/", true},
		{"below the prefix", "https://example.test/docs", "https://EXAMPLE.test/docs/intro", true},
		{"sibling path", "https://example.test/docs", "https://example.test/docsearch", false},
		{"host suffix", "https://example.test", "https://example.test.evil.test", false},
		{"empty prefix", "", "https://anything.test", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ScopeCovers(tt.prefix, tt.raw); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
