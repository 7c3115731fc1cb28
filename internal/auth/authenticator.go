package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/sitewalk/internal/browser"
)

// AfterLoginArtifact is the screenshot name saved after a successful login.
const AfterLoginArtifact = "after_login.png"

// Default login flow timing.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
)

// DefaultFailurePhrases are matched case-insensitively against the error indicator.
var DefaultFailurePhrases = []string{"no match for", "invalid", "incorrect", "failed"}

// Selectors locate the login form and its result markers.
type Selectors struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Submit         string `yaml:"submit"`
	ErrorIndicator string `yaml:"errorIndicator"`
	SuccessMarker  string `yaml:"successMarker"`
}

// DefaultSelectors returns the selectors of a common storefront login form.
func DefaultSelectors() Selectors {
	return Selectors{
		Username:       `input[name="email"]`,
		Password:       `input[name="password"]`,
		Submit:         `button[type="submit"]`,
		ErrorIndicator: ".alert-danger",
		SuccessMarker:  `a[title="My Account"]`,
	}
}

// merge fills empty fields of s from def.
func (s Selectors) merge(def Selectors) Selectors {
	if s.Username == "" {
		s.Username = def.Username
	}
	if s.Password == "" {
		s.Password = def.Password
	}
	if s.Submit == "" {
		s.Submit = def.Submit
	}
	if s.ErrorIndicator == "" {
		s.ErrorIndicator = def.ErrorIndicator
	}
	if s.SuccessMarker == "" {
		s.SuccessMarker = def.SuccessMarker
	}
	return s
}

// ArtifactStore saves the after-login screenshot.
type ArtifactStore interface {
	Save(name string, data []byte) (string, error)
}

// Authenticator establishes a logged-in session on a page before the
// traversal starts.
type Authenticator struct {
	provider       CredentialsProvider
	selectors      Selectors
	failurePhrases []string
	timeout        time.Duration
	pollInterval   time.Duration
	store          ArtifactStore
	logger         *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithSelectors overrides the login selectors. Empty fields keep their defaults.
func WithSelectors(s Selectors) Option {
	return func(a *Authenticator) {
		a.selectors = s.merge(DefaultSelectors())
	}
}

// WithFailurePhrases sets the phrases that mark a rejection message.
func WithFailurePhrases(phrases []string) Option {
	return func(a *Authenticator) {
		if len(phrases) > 0 {
			a.failurePhrases = phrases
		}
	}
}

// WithTimeout bounds each wait of the login flow.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithPollInterval sets how often the page is checked while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithArtifactStore saves an after-login screenshot to store.
func WithArtifactStore(store ArtifactStore) Option {
	return func(a *Authenticator) {
		a.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// New creates an Authenticator using credentials from provider.
func New(provider CredentialsProvider, opts ...Option) *Authenticator {
	a := &Authenticator{
		provider:       provider,
		selectors:      DefaultSelectors(),
		failurePhrases: DefaultFailurePhrases,
		timeout:        DefaultTimeout,
		pollInterval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Authenticate logs in on page through the form at loginURL.
//
// After submitting, it polls the page for the error indicator and the
// success marker, whichever shows up first. Every returned error is an
// *Error and the caller must not start the traversal.
func (a *Authenticator) Authenticate(ctx context.Context, page browser.Page, loginURL string) error {
	if a.provider == nil {
		return stageError(StageCredentials, ErrMissingCredentials)
	}
	creds, err := a.provider.Credentials(ctx)
	if err != nil {
		return stageError(StageCredentials, err)
	}
	logger := a.logger.With("loginURL", loginURL, "credentials", creds)
	logger.Info("logging in")

	navCtx, cancel := context.WithTimeout(ctx, a.timeout)
	err = page.Navigate(navCtx, loginURL)
	cancel()
	if err != nil {
		return stageError(StageNavigate, err)
	}

	if err := a.waitForm(ctx, page); err != nil {
		return stageError(StageForm, err)
	}

	if err := a.submit(ctx, page, creds); err != nil {
		return stageError(StageSubmit, err)
	}

	if err := a.waitResult(ctx, page); err != nil {
		logger.Warn("login failed", "error", err)
		return stageError(StageVerify, err)
	}

	logger.Info("login succeeded")
	a.captureAfterLogin(ctx, page)
	return nil
}

// waitForm waits until both credential fields exist.
func (a *Authenticator) waitForm(ctx context.Context, page browser.Page) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.poll(ctx, func(ctx context.Context) (bool, error) {
		return a.exists(ctx, page, a.selectors.Username) && a.exists(ctx, page, a.selectors.Password), nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: login form not found", ErrAuthTimeout)
	}
	return err
}

// submit fills the form and clicks the submit control.
func (a *Authenticator) submit(ctx context.Context, page browser.Page, creds Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := page.Fill(ctx, a.selectors.Username, creds.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := page.Fill(ctx, a.selectors.Password, creds.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := page.Click(ctx, a.selectors.Submit); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	return nil
}

// waitResult races the error indicator against the success marker.
func (a *Authenticator) waitResult(ctx context.Context, page browser.Page) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.poll(ctx, func(ctx context.Context) (bool, error) {
		if a.exists(ctx, page, a.selectors.ErrorIndicator) {
			msg, _ := page.Text(ctx, a.selectors.ErrorIndicator)
			if phrase := a.matchPhrase(msg); phrase != "" {
				return false, fmt.Errorf("%w: %q (matched %q)", ErrAuthRejected, msg, phrase)
			}
			return false, fmt.Errorf("%w: %q", ErrAuthRejected, msg)
		}
		return a.exists(ctx, page, a.selectors.SuccessMarker), nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrAuthTimeout, a.timeout)
	}
	return err
}

// matchPhrase returns the first failure phrase contained in msg.
func (a *Authenticator) matchPhrase(msg string) string {
	lower := strings.ToLower(msg)
	for _, phrase := range a.failurePhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase
		}
	}
	return ""
}

// poll calls check until it reports done, fails, or ctx ends.
func (a *Authenticator) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// exists treats lookup errors as absence. The page may be mid-navigation.
func (a *Authenticator) exists(ctx context.Context, page browser.Page, selector string) bool {
	ok, err := page.Exists(ctx, selector)
	if err != nil {
		a.logger.Debug("selector lookup failed", "selector", selector, "error", err)
		return false
	}
	return ok
}

// captureAfterLogin saves a screenshot of the logged-in page.
func (a *Authenticator) captureAfterLogin(ctx context.Context, page browser.Page) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	shot, err := page.Screenshot(ctx)
	if err != nil {
		a.logger.Warn("failed to capture after-login screenshot", "error", err)
		return
	}
	path, err := a.store.Save(AfterLoginArtifact, shot)
	if err != nil {
		a.logger.Warn("failed to save after-login screenshot", "error", err)
		return
	}
	a.logger.Debug("saved after-login screenshot", "path", path)
}
