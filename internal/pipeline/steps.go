package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/crawler"
	"github.com/nao1215/sitewalk/internal/model"
	"github.com/nao1215/sitewalk/internal/report"
)

// Authenticator logs in on a page. *auth.Authenticator implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, page browser.Page, loginURL string) error
}

// Crawler walks a site from a seed. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, page browser.Page, seed string) ([]*model.VisitRecord, error)
	Limits() crawler.Limits
}

// RunStore persists finished runs. *database.HistoryDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// LoginStep authenticates before the traversal.
// Its failure is fatal: the pipeline stops and nothing is reported.
type LoginStep struct {
	authenticator Authenticator
	page          browser.Page
	loginURL      string
	logger        *slog.Logger
}

// LoginStepOption configures a LoginStep.
type LoginStepOption func(*LoginStep)

// WithLoginLogger sets a custom logger for the login step.
func WithLoginLogger(logger *slog.Logger) LoginStepOption {
	return func(s *LoginStep) {
		s.logger = logger
	}
}

// NewLoginStep creates a login step that signs in on page at loginURL.
func NewLoginStep(a Authenticator, page browser.Page, loginURL string, opts ...LoginStepOption) *LoginStep {
	s := &LoginStep{
		authenticator: a,
		page:          page,
		loginURL:      loginURL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoginStep) Name() string {
	return "login"
}

// Do executes the login step.
func (s *LoginStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.authenticator.Authenticate(ctx, s.page, s.loginURL); err != nil {
		return err
	}
	run.Authenticated = true
	s.logger.Info("logged in", "url", s.loginURL)
	return nil
}

// CrawlStep runs the traversal engine and stores its records in the run.
type CrawlStep struct {
	crawler    Crawler
	page       browser.Page
	runTimeout time.Duration
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithRunTimeout bounds the whole traversal. 0 disables the bound.
func WithRunTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.runTimeout = d
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that walks on page.
func NewCrawlStep(c Crawler, page browser.Page, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		page:    page,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
//
// When the run timeout expires or ctx is cancelled, the partial records
// are kept, the run is marked TimedOut, and the step still succeeds so that
// the partial result is reported.
func (s *CrawlStep) Do(ctx context.Context, run *model.Run) error {
	limits := s.crawler.Limits()
	run.MaxDepth = limits.MaxDepth
	run.MaxPages = limits.MaxPages
	run.ScopePrefix = limits.ScopePrefix
	if run.ScopePrefix == "" {
		if seed, err := crawler.NormalizeSeed(run.Seed); err == nil {
			run.ScopePrefix = crawler.ScopePrefixFor(seed)
		}
	}

	crawlCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	records, err := s.crawler.Crawl(crawlCtx, s.page, run.Seed)
	if records != nil {
		run.Records = records
	}
	run.Finish()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			run.TimedOut = true
			s.logger.Warn("traversal stopped early",
				"seed", run.Seed,
				"visited", len(run.Records),
				"reason", err,
			)
			return nil
		}
		return err
	}
	return nil
}

// ReportStep writes the report files of a run.
type ReportStep struct {
	dir     string
	formats []report.Format
	version string
	logger  *slog.Logger

	written []string
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a step writing formats into dir.
// No formats means report.DefaultFormats.
func NewReportStep(dir string, formats []report.Format, version string, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		dir:     dir,
		formats: formats,
		version: version,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Final reports that partial runs are written too.
func (s *ReportStep) Final() bool {
	return true
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, run *model.Run) error {
	paths, err := report.WriteFiles(s.dir, run, s.version, s.formats...)
	s.written = paths
	if err != nil {
		return err
	}
	s.logger.Info("reports written", "seed", run.Seed, "files", paths)
	return nil
}

// Written returns the paths of the files written by the last Do.
func (s *ReportStep) Written() []string {
	return s.written
}

// PersistStep saves the run in the history database.
type PersistStep struct {
	store  RunStore
	logger *slog.Logger
}

// NewPersistStep creates a step saving runs to store.
func NewPersistStep(store RunStore, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Final reports that partial runs are stored too.
func (s *PersistStep) Final() bool {
	return true
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.store.SaveRun(ctx, run); err != nil {
		return err
	}
	s.logger.Debug("run saved", "seed", run.Seed, "id", run.ID)
	return nil
}
