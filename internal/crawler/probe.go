package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitewalk/internal/browser"
)

// Selectors used by the interaction probe.
const (
	selectorForm       = "form"
	selectorEmailInput = `input[type="email"]`
	selectorSubmit     = `button[type="submit"]`
	selectorButton     = "button"
)

// DefaultProbeEmail is typed into email inputs found by the probe.
const DefaultProbeEmail = "test@example.com"

// DefaultProbeTimeout bounds all probe interactions on one page.
const DefaultProbeTimeout = 5 * time.Second

// actionsPerBudget splits the page budget: one lookup, fill or click gets
// at most timeout/actionsPerBudget.
const actionsPerBudget = 4

// ProbeResult records which probe branch ran on a page.
type ProbeResult struct {
	HasForm       bool
	ClickedButton bool
}

// Prober pokes at a page's interactive elements.
//
// If the page has a form, the probe fills an email input when there is one
// and clicks the submit button when there is one. If nothing was clicked yet
// and the page has any button, it clicks that. A page without controls is a
// normal result, and interaction errors only end the probe early: they are
// logged, never reported as a failed visit.
type Prober struct {
	email   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a Prober. Zero values select the defaults.
func NewProber(email string, timeout time.Duration, logger *slog.Logger) *Prober {
	if email == "" {
		email = DefaultProbeEmail
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{email: email, timeout: timeout, logger: logger}
}

// Probe runs the probe on the page's current document.
//
// Every lookup and interaction has its own deadline inside the page
// budget. An element that matches but never becomes visible costs one
// action, not the whole budget, so the remaining steps still run.
func (p *Prober) Probe(ctx context.Context, page browser.Page) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var result ProbeResult

	var hasForm bool
	err := p.act(ctx, func(ctx context.Context) error {
		var err error
		hasForm, err = page.Exists(ctx, selectorForm)
		return err
	})
	if err != nil {
		p.logger.Debug("probe stopped", "step", "find form", "error", err)
		return result
	}

	if hasForm {
		result.HasForm = true

		if p.exists(ctx, page, selectorEmailInput) {
			err := p.act(ctx, func(ctx context.Context) error {
				return page.Fill(ctx, selectorEmailInput, p.email)
			})
			if err != nil {
				p.logger.Debug("probe fill failed", "selector", selectorEmailInput, "error", err)
			}
		}

		if p.exists(ctx, page, selectorSubmit) {
			result.ClickedButton = p.click(ctx, page, selectorSubmit)
		}
	}

	if !result.ClickedButton && p.exists(ctx, page, selectorButton) {
		result.ClickedButton = p.click(ctx, page, selectorButton)
	}

	return result
}

// act runs fn under the per-action deadline.
func (p *Prober) act(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout/actionsPerBudget)
	defer cancel()
	return fn(ctx)
}

// click reports whether selector was clicked.
func (p *Prober) click(ctx context.Context, page browser.Page, selector string) bool {
	err := p.act(ctx, func(ctx context.Context) error {
		return page.Click(ctx, selector)
	})
	if err != nil {
		p.logger.Debug("probe click failed", "selector", selector, "error", err)
		return false
	}
	return true
}

// exists wraps page.Exists and treats errors as absence.
func (p *Prober) exists(ctx context.Context, page browser.Page, selector string) bool {
	var ok bool
	err := p.act(ctx, func(ctx context.Context) error {
		var err error
		ok, err = page.Exists(ctx, selector)
		return err
	})
	if err != nil {
		p.logger.Debug("probe lookup failed", "selector", selector, "error", err)
		return false
	}
	return ok
}
