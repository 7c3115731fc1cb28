package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitewalk/internal/artifact"
	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/model"
)

// DefaultNavTimeout bounds the navigation of one page.
const DefaultNavTimeout = 15 * time.Second

// DefaultCaptureTimeout bounds reading the DOM and taking the screenshot.
const DefaultCaptureTimeout = 30 * time.Second

// ArtifactStore persists screenshots. *artifact.Store implements it.
type ArtifactStore interface {
	Save(name string, data []byte) (string, error)
}

// Outcome is the result of one visit: the record to report and the links
// to consider for expansion. Links is empty for failures.
type Outcome struct {
	Record *model.VisitRecord
	Links  []string
}

// Visitor loads one page and inspects it.
type Visitor struct {
	store          ArtifactStore
	normalizer     Normalizer
	navTimeout     time.Duration
	captureTimeout time.Duration
	prober         *Prober
	probeEnabled   bool
	probeEmail     string
	probeTimeout   time.Duration
	logger         *slog.Logger
}

// VisitorOption configures a Visitor.
type VisitorOption func(*Visitor)

// WithNavTimeout sets the per-page navigation timeout.
func WithNavTimeout(d time.Duration) VisitorOption {
	return func(v *Visitor) {
		if d > 0 {
			v.navTimeout = d
		}
	}
}

// WithCaptureTimeout sets the timeout for reading the DOM and capturing.
func WithCaptureTimeout(d time.Duration) VisitorOption {
	return func(v *Visitor) {
		if d > 0 {
			v.captureTimeout = d
		}
	}
}

// WithProbe enables or disables the interaction probe. Enabled by default.
func WithProbe(enabled bool) VisitorOption {
	return func(v *Visitor) {
		v.probeEnabled = enabled
	}
}

// WithProbeEmail sets the value typed into email inputs.
func WithProbeEmail(email string) VisitorOption {
	return func(v *Visitor) {
		v.probeEmail = email
	}
}

// WithProbeTimeout bounds the probe on one page.
func WithProbeTimeout(d time.Duration) VisitorOption {
	return func(v *Visitor) {
		v.probeTimeout = d
	}
}

// WithVisitorNormalizer sets the normalizer used to name artifacts.
func WithVisitorNormalizer(n Normalizer) VisitorOption {
	return func(v *Visitor) {
		v.normalizer = n
	}
}

// WithVisitorLogger sets the logger.
func WithVisitorLogger(logger *slog.Logger) VisitorOption {
	return func(v *Visitor) {
		v.logger = logger
	}
}

// NewVisitor creates a Visitor that saves screenshots to store.
// A nil store disables capture.
func NewVisitor(store ArtifactStore, opts ...VisitorOption) *Visitor {
	v := &Visitor{
		store:          store,
		navTimeout:     DefaultNavTimeout,
		captureTimeout: DefaultCaptureTimeout,
		probeEnabled:   true,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.probeEnabled {
		v.prober = NewProber(v.probeEmail, v.probeTimeout, v.logger)
	}
	return v
}

// Visit navigates page to rawURL and returns the outcome.
//
// A navigation error or timeout is returned as a failure record, never as
// an error, so one bad page cannot end the traversal. Once navigation has
// succeeded the document is read and its links extracted before anything
// else, because the probe may submit a form and leave the page. A failed
// screenshot is noted on the success record.
func (v *Visitor) Visit(ctx context.Context, page browser.Page, rawURL string, depth int) Outcome {
	start := time.Now()
	logger := v.logger.With("url", rawURL, "depth", depth)

	fail := func(err error) Outcome {
		rec := model.NewFailureRecord(rawURL, depth, err)
		rec.VisitedAt = start
		rec.Duration = time.Since(start)
		logger.Warn("visit failed", "error", err)
		return Outcome{Record: rec}
	}

	navCtx, cancel := context.WithTimeout(ctx, v.navTimeout)
	err := page.Navigate(navCtx, rawURL)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("navigation timed out after %s: %w", v.navTimeout, err)
		}
		return fail(err)
	}

	readCtx, cancelRead := context.WithTimeout(ctx, v.captureTimeout)
	defer cancelRead()

	finalURL, err := page.Location(readCtx)
	if err != nil || finalURL == "" {
		finalURL = rawURL
	}

	content, err := page.HTML(readCtx)
	if err != nil {
		return fail(fmt.Errorf("failed to read document: %w", err))
	}

	rec := model.NewSuccessRecord(rawURL, depth)
	rec.VisitedAt = start
	rec.FinalURL = finalURL
	rec.ComputeContentHash(content)

	var links []string
	snap, err := ParseSnapshot(content, finalURL)
	if err != nil {
		logger.Debug("failed to parse document", "error", err)
	} else {
		rec.Title = snap.Title
		links = snap.Links
	}
	rec.LinkCount = len(links)

	if v.store != nil {
		path, err := v.capture(readCtx, page, rawURL)
		if err != nil {
			rec.CaptureError = err.Error()
			logger.Warn("screenshot failed", "error", err)
		} else {
			rec.ArtifactPath = path
		}
	}

	if v.prober != nil {
		result := v.prober.Probe(ctx, page)
		rec.HasForm = result.HasForm
		rec.ClickedButton = result.ClickedButton
	}

	rec.Duration = time.Since(start)
	logger.Debug("visit completed",
		"links", len(links),
		"hasForm", rec.HasForm,
		"clickedButton", rec.ClickedButton,
		"elapsed", rec.Duration,
	)

	return Outcome{Record: rec, Links: links}
}

// capture takes a full-page screenshot and stores it under a name derived
// from the normalized URL.
func (v *Visitor) capture(ctx context.Context, page browser.Page, rawURL string) (string, error) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return v.store.Save(artifact.FileName(v.normalizer.Normalize(rawURL)), shot)
}
