package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitewalk/internal/artifact"
	"github.com/nao1215/sitewalk/internal/browser/browsertest"
)

const (
	loginURL  = "https://shop.test/login"
	loginPage = `<html><body><form>
		<input name="email" type="email">
		<input name="password" type="password">
		<button type="submit">Login</button>
	</form></body></html>`
	accountPage  = `<html><body><a title="My Account" href="/account">My Account</a></body></html>`
	rejectedPage = `<html><body><div class="alert alert-danger">Warning: No match for E-Mail Address and/or Password.</div></body></html>`
	pendingPage  = `<html><body><p>Please wait</p></body></html>`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loginSite serves the login form and swaps in result after submit.
func loginSite(result string) *browsertest.Page {
	page := browsertest.NewPage(map[string]string{loginURL: loginPage})
	page.OnClick = func(p *browsertest.Page, _ string) {
		p.SetDocument("https://shop.test/after", result)
	}
	return page
}

func newTestAuthenticator(store ArtifactStore, opts ...Option) *Authenticator {
	base := []Option{
		WithTimeout(100 * time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
		WithLogger(discardLogger()),
	}
	if store != nil {
		base = append(base, WithArtifactStore(store))
	}
	return New(Static("user@shop.test", "s3cret"), append(base, opts...)...)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	return len(entries)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	t.Run("success marker logs in and captures screenshot", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "shots")
		page := loginSite(accountPage)
		a := newTestAuthenticator(artifact.NewStore(dir))

		if err := a.Authenticate(context.Background(), page, loginURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if v, _ := page.Filled(`input[name="email"]`); v != "user@shop.test" {
			t.Errorf("expected username filled, got %q", v)
		}
		if v, _ := page.Filled(`input[name="password"]`); v != "s3cret" {
			t.Errorf("expected password filled, got %q", v)
		}
		if _, err := os.Stat(filepath.Join(dir, AfterLoginArtifact)); err != nil {
			t.Errorf("expected %s to exist: %v", AfterLoginArtifact, err)
		}
	})

	t.Run("error indicator rejects", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		a := newTestAuthenticator(artifact.NewStore(dir))

		err := a.Authenticate(context.Background(), loginSite(rejectedPage), loginURL)
		if !errors.Is(err, ErrAuthRejected) {
			t.Fatalf("expected ErrAuthRejected, got %v", err)
		}
		var authErr *Error
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if authErr.Stage != StageVerify {
			t.Errorf("expected stage %q, got %q", StageVerify, authErr.Stage)
		}
		if n := countFiles(t, dir); n != 0 {
			t.Errorf("expected no artifacts, got %d", n)
		}
	})

	t.Run("error indicator without known phrase still rejects", func(t *testing.T) {
		t.Parallel()

		page := loginSite(`<html><body><div class="alert-danger">Account locked</div></body></html>`)
		err := newTestAuthenticator(nil).Authenticate(context.Background(), page, loginURL)
		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("expected ErrAuthRejected, got %v", err)
		}
	})

	t.Run("neither marker times out without artifacts", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		a := newTestAuthenticator(artifact.NewStore(dir), WithTimeout(40*time.Millisecond))

		err := a.Authenticate(context.Background(), loginSite(pendingPage), loginURL)
		if !errors.Is(err, ErrAuthTimeout) {
			t.Fatalf("expected ErrAuthTimeout, got %v", err)
		}
		if n := countFiles(t, dir); n != 0 {
			t.Errorf("expected no artifacts, got %d", n)
		}
	})

	t.Run("missing login form times out", func(t *testing.T) {
		t.Parallel()

		page := browsertest.NewPage(map[string]string{loginURL: pendingPage})
		err := newTestAuthenticator(nil, WithTimeout(30*time.Millisecond)).
			Authenticate(context.Background(), page, loginURL)

		var authErr *Error
		if !errors.As(err, &authErr) || authErr.Stage != StageForm {
			t.Fatalf("expected form stage error, got %v", err)
		}
		if !errors.Is(err, ErrAuthTimeout) {
			t.Errorf("expected ErrAuthTimeout, got %v", err)
		}
	})

	t.Run("navigation failure", func(t *testing.T) {
		t.Parallel()

		page := browsertest.NewPage(map[string]string{})
		page.Errors[loginURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

		err := newTestAuthenticator(nil).Authenticate(context.Background(), page, loginURL)

		var authErr *Error
		if !errors.As(err, &authErr) || authErr.Stage != StageNavigate {
			t.Fatalf("expected navigate stage error, got %v", err)
		}
	})

	t.Run("missing credentials stop before navigation", func(t *testing.T) {
		t.Parallel()

		page := loginSite(accountPage)
		a := New(Static("", ""), WithLogger(discardLogger()))

		err := a.Authenticate(context.Background(), page, loginURL)
		if !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
		if len(page.Visits()) != 0 {
			t.Errorf("expected no navigation, got %v", page.Visits())
		}
	})

	t.Run("custom selectors", func(t *testing.T) {
		t.Parallel()

		page := browsertest.NewPage(map[string]string{loginURL: `<html><body><form>
			<input id="user"><input id="pass"><input type="submit" id="go">
		</form></body></html>`})
		page.OnClick = func(p *browsertest.Page, _ string) {
			p.SetDocument(loginURL, `<html><body><span class="welcome">Hi</span></body></html>`)
		}

		a := newTestAuthenticator(nil, WithSelectors(Selectors{
			Username:      "#user",
			Password:      "#pass",
			Submit:        "#go",
			SuccessMarker: ".welcome",
		}))
		if err := a.Authenticate(context.Background(), page, loginURL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.selectors.ErrorIndicator != DefaultSelectors().ErrorIndicator {
			t.Errorf("expected default error indicator to be kept, got %q", a.selectors.ErrorIndicator)
		}
	})
}

func TestMatchPhrase(t *testing.T) {
	t.Parallel()

	a := New(nil)
	tests := []struct {
		msg  string
		want string
	}{
		{"Warning: No match for E-Mail Address", "no match for"},
		{"INVALID token", "invalid"},
		{"Password incorrect", "incorrect"},
		{"Account locked", ""},
	}
	for _, tt := range tests {
		if got := a.matchPhrase(tt.msg); got != tt.want {
			t.Errorf("matchPhrase(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	err := stageError(StageVerify, ErrAuthTimeout)
	if err.Error() != "authentication failed at verify: timed out waiting for login result" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrAuthTimeout) {
		t.Error("expected Unwrap to expose the cause")
	}
}
