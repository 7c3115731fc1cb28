package config

import "github.com/nao1215/sitewalk/internal/auth"

// SiteConfig holds settings for one site. Pointer fields distinguish
// "not set" from a meaningful zero, since depth 0 and max pages 0 are
// both valid limits.
type SiteConfig struct {
	// Depth overrides the maximum crawl depth for this site.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the page cap for this site.
	MaxPages *int `yaml:"maxPages,omitempty"`

	// Scope is the URL prefix visits must stay under.
	Scope string `yaml:"scope,omitempty"`

	// Order is "dfs" or "bfs".
	Order string `yaml:"order,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// LoginURL enables the login step for this site.
	LoginURL string `yaml:"loginUrl,omitempty"`

	// Username is the login name. The password never goes in this file.
	Username string `yaml:"username,omitempty"`

	// LoginSelectors override the CSS selectors of the login form.
	// Empty fields keep the defaults.
	LoginSelectors auth.Selectors `yaml:"loginSelectors,omitempty"`

	// FailurePhrases are texts in the error indicator that mean the
	// credentials were rejected.
	FailurePhrases []string `yaml:"failurePhrases,omitempty"`

	// ProbeEmail is typed into email inputs by the probe.
	ProbeEmail string `yaml:"probeEmail,omitempty"`
}

// File represents the structure of the .sitewalk configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are the host of the seed URL, with port if any (e.g., "shop.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.MaxPages != nil {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.Scope != "" {
		result.Scope = siteConfig.Scope
	}
	if siteConfig.Order != "" {
		result.Order = siteConfig.Order
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	if siteConfig.LoginURL != "" {
		result.LoginURL = siteConfig.LoginURL
	}
	if siteConfig.Username != "" {
		result.Username = siteConfig.Username
	}
	result.LoginSelectors = mergeSelectors(siteConfig.LoginSelectors, result.LoginSelectors)
	if len(siteConfig.FailurePhrases) > 0 {
		result.FailurePhrases = siteConfig.FailurePhrases
	}
	if siteConfig.ProbeEmail != "" {
		result.ProbeEmail = siteConfig.ProbeEmail
	}

	return result
}

// mergeSelectors fills empty fields of s from base.
func mergeSelectors(s, base auth.Selectors) auth.Selectors {
	if s.Username == "" {
		s.Username = base.Username
	}
	if s.Password == "" {
		s.Password = base.Password
	}
	if s.Submit == "" {
		s.Submit = base.Submit
	}
	if s.ErrorIndicator == "" {
		s.ErrorIndicator = base.ErrorIndicator
	}
	if s.SuccessMarker == "" {
		s.SuccessMarker = base.SuccessMarker
	}
	return s
}
