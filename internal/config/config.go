package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitewalk/internal/crawler"
)

// Default configuration values.
const (
	// DefaultMaxDepth is how many link hops from the seed are followed.
	DefaultMaxDepth = 3

	// DefaultLoginMaxDepth replaces DefaultMaxDepth when a login URL is set
	// and no depth was given. Authenticated areas tend to be wide, so the
	// walk stays shallower.
	DefaultLoginMaxDepth = 2

	// DefaultMaxPages caps the number of visits per seed.
	// 0 removes the cap.
	DefaultMaxPages = 50

	// DefaultNavTimeout bounds the navigation of one page.
	DefaultNavTimeout = 15 * time.Second

	// DefaultRunTimeout bounds a whole traversal. 0 disables it.
	DefaultRunTimeout = 10 * time.Minute

	// DefaultBatchSize of 1 walks seeds one after another.
	DefaultBatchSize = 1

	// DefaultOrder is depth-first, the order the work list was designed for.
	DefaultOrder = "dfs"

	// DefaultScreenshotDir is where page screenshots are written.
	DefaultScreenshotDir = "screenshots"

	// DefaultOutputDir is where report files are written.
	DefaultOutputDir = "."

	// AppName is the application name used for XDG directory paths.
	AppName = "sitewalk"
)

// DefaultFormats are the report formats written when none are requested.
var DefaultFormats = []string{"json", "csv"}

// knownFormats lists every accepted --format value.
var knownFormats = map[string]bool{
	"json":     true,
	"csv":      true,
	"markdown": true,
	"md":       true,
	"text":     true,
	"txt":      true,
}

// Config holds all configuration options for a sitewalk run.
// It is populated from CLI flags and the configuration file and passed
// down explicitly rather than kept in global state.
type Config struct {
	// Seeds are the start URLs. Each seed is walked independently.
	Seeds []string

	// MaxDepth is the deepest link hop visited. 0 visits only the seed.
	MaxDepth int

	// MaxPages caps the number of visits per seed. 0 means no cap.
	MaxPages int

	// ScopePrefix restricts visits to URLs starting with it.
	// Empty means the origin of each seed.
	ScopePrefix string

	// Order is "dfs" or "bfs".
	Order string

	// KeepQuery makes the query string part of the deduplication key.
	KeepQuery bool

	// IgnorePatterns and FollowPatterns filter visited paths with globs.
	IgnorePatterns []string
	FollowPatterns []string

	// NavTimeout bounds the navigation of one page.
	NavTimeout time.Duration

	// RunTimeout bounds the traversal of one seed. 0 disables it.
	RunTimeout time.Duration

	// ScreenshotDir is where screenshots go. Empty disables capture.
	ScreenshotDir string

	// OutputDir is where report files go.
	OutputDir string

	// Formats lists the report formats to write.
	Formats []string

	// LoginURL enables the login step before traversal.
	LoginURL string

	// Username is used for login. When empty it is read from the
	// environment or prompted for.
	Username string

	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string

	// Headful shows the browser window.
	Headful bool

	// UserDataDir is a persistent browser profile directory.
	UserDataDir string

	// ProbeEnabled turns the form and button probe on.
	ProbeEnabled bool

	// ProbeEmail is typed into email inputs by the probe.
	ProbeEmail string

	// BatchSize is the number of seeds walked concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ShowProgress enables the progress spinner on terminals.
	ShowProgress bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitewalk is searched for in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/sitewalk on Linux).
	DBDir string

	// SaveToDB stores every run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:      DefaultMaxDepth,
		MaxPages:      DefaultMaxPages,
		Order:         DefaultOrder,
		NavTimeout:    DefaultNavTimeout,
		RunTimeout:    DefaultRunTimeout,
		ScreenshotDir: DefaultScreenshotDir,
		OutputDir:     DefaultOutputDir,
		Formats:       append([]string(nil), DefaultFormats...),
		ProbeEnabled:  true,
		BatchSize:     DefaultBatchSize,
		ShowProgress:  true,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
	}
}

// XDGDataDir returns the XDG data directory for sitewalk.
// On Linux: ~/.local/share/sitewalk
// On macOS: ~/Library/Application Support/sitewalk
// On Windows: %LOCALAPPDATA%\sitewalk
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitewalk.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a wrapped sentinel error.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if err := validateURL(seed); err != nil {
			return err
		}
	}
	if c.LoginURL != "" {
		if err := validateURL(c.LoginURL); err != nil {
			return fmt.Errorf("login URL: %w", err)
		}
	}
	if c.ScopePrefix != "" {
		scope, err := c.Scope()
		if err != nil {
			return err
		}
		for _, seed := range c.Seeds {
			if !crawler.ScopeCovers(scope, seed) {
				return fmt.Errorf("%w: %s not under %s", ErrSeedOutOfScope, seed, scope)
			}
		}
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.NavTimeout <= 0 || c.RunTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	switch strings.ToLower(strings.TrimSpace(c.Order)) {
	case "", "dfs", "bfs", "depth-first", "breadth-first":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOrder, c.Order)
	}

	for _, f := range c.Formats {
		if !knownFormats[strings.ToLower(strings.TrimSpace(f))] {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}

	return nil
}

// Scope returns the scope prefix in the form the crawler compares URLs
// in. A bare host or path such as "shop.test/catalog" gets https://.
// An empty prefix stays empty.
func (c *Config) Scope() (string, error) {
	if strings.TrimSpace(c.ScopePrefix) == "" {
		return "", nil
	}
	scope, err := crawler.NormalizeScope(c.ScopePrefix)
	if err != nil {
		return "", fmt.Errorf("scope %q: %w", c.ScopePrefix, err)
	}
	return scope, nil
}

// ApplySite overlays the file settings for seed onto c. Fields whose flag
// the user set explicitly are listed in explicit and keep their flag value.
func (c *Config) ApplySite(seed string, explicit map[string]bool) {
	if c.SiteConfigs == nil {
		return
	}
	site := c.SiteConfigs.GetSiteConfig(SiteKey(seed))

	if site.Depth != nil && !explicit["depth"] {
		c.MaxDepth = *site.Depth
	}
	if site.MaxPages != nil && !explicit["max-pages"] {
		c.MaxPages = *site.MaxPages
	}
	if site.Scope != "" && !explicit["scope"] {
		c.ScopePrefix = site.Scope
	}
	if site.Order != "" && !explicit["order"] {
		c.Order = site.Order
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		c.FollowPatterns = site.FollowPatterns
	}
	if site.LoginURL != "" && !explicit["login-url"] {
		c.LoginURL = site.LoginURL
	}
	if site.Username != "" && !explicit["username"] {
		c.Username = site.Username
	}
	if site.ProbeEmail != "" {
		c.ProbeEmail = site.ProbeEmail
	}
}

// SiteKey returns the key a seed is looked up by in the sites section:
// its lower-cased host including any port. Unparsable seeds are used as is.
func SiteKey(seed string) string {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil || u.Host == "" {
		return seed
	}
	return strings.ToLower(u.Host)
}

// validateURL checks that raw is an absolute http(s) URL with a host.
func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSeed, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidSeed, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q: missing host", ErrInvalidSeed, raw)
	}
	return nil
}
