package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys and query parameter names whose value
// is always masked. Keys are compared in lower case.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,

	// Login form fields
	"password": true,
	"passwd":   true,
	"pass":     true,
	"pwd":      true,
	"otp":      true,
	"pin":      true,

	// Session state
	"session":    true,
	"session_id": true,
	"sessionid":  true,
	"sid":        true,
	"jsessionid": true,
	"phpsessid":  true,

	// API credentials
	"api_key": true,
	"apikey":  true,
	"api-key": true,
	"code":    true,
}

// sensitiveKeywords mask any key that contains them. A bare "auth" is not
// one because it would hide "authenticated", and a bare "key" would hide
// "primary_key" or "keyboard".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "authorization",
	"credential", "private", "cookie",
}

// sensitivePatterns match values that are secrets whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Authorization header values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// PEM private keys
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
	// Cookie header values carrying a session
	regexp.MustCompile(`(?i)^[a-z_]*sess[a-z_]*=\S+`),
}

// SecureHandler wraps an slog.Handler and masks secrets before records
// reach it.
//
// Three things are masked: attributes whose key names a secret, string
// values that look like one, and the userinfo password or secret query
// parameters of URLs. URLs are logged on every visit, so they are
// scrubbed in place rather than hidden.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler means slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr masks one attribute. LogValuer values are resolved first so
// that grouped credentials are seen field by field.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			clean[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, sanitizeString(a.Value.String()))
	case slog.KindAny:
		if strs, ok := a.Value.Any().([]string); ok {
			clean := make([]string, len(strs))
			for i, s := range strs {
				clean[i] = sanitizeString(s)
			}
			return slog.Any(a.Key, clean)
		}
	}
	return a
}

// sanitizeString masks a secret-shaped value and scrubs URLs.
func sanitizeString(s string) string {
	if isSensitiveValue(s) {
		return MaskValue
	}
	if scrubbed, ok := scrubURL(s); ok {
		return scrubbed
	}
	return s
}

// isSensitiveKey reports whether key names a secret.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether value matches a secret pattern.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// scrubURL drops the userinfo password and masks the values of sensitive
// query parameters of an http(s) URL. The query keeps its order and
// encoding.
// ok is false when s is not such a URL or nothing had to be masked.
func scrubURL(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	changed := false
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.User(u.User.Username())
		changed = true
	}

	if u.RawQuery != "" {
		parts := strings.Split(u.RawQuery, "&")
		for i, part := range parts {
			name, _, _ := strings.Cut(part, "=")
			if unescaped, err := url.QueryUnescape(name); err == nil {
				name = unescaped
			}
			if isSensitiveKey(name) {
				parts[i] = url.QueryEscape(name) + "=" + MaskValue
				changed = true
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

// level maps the verbose flag to a log level: Debug when verbose, Warn
// otherwise.
func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger returns a sanitizing logger writing slog text lines to w.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(handler))
}

// NewSecureJSONLogger returns a sanitizing logger writing JSON lines to w,
// for log collectors.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(handler))
}

// NewSecureConsoleLogger creates a logger for interactive terminals.
// Records are sanitized and then rendered by charmbracelet/log with
// colored levels and short timestamps.
func NewSecureConsoleLogger(w io.Writer, verbose bool) *slog.Logger {
	console := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(level(verbose)),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "sitewalk",
	})
	return slog.New(NewSecureHandler(console))
}

// NewLogger picks the console logger when w is a terminal and the plain
// text logger otherwise.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	if f, ok := w.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		return NewSecureConsoleLogger(w, verbose)
	}
	return NewSecureLogger(w, verbose)
}
