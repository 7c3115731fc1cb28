package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitewalk"

// xdgConfigFile is the file name looked up in XDGConfigDir.
const xdgConfigFile = "config.yaml"

// LoadConfigFile loads defaults and per-site settings from a YAML file.
// Unknown keys are an error so that a misspelled setting is not silently
// ignored. Site keys may be written as hosts or as URLs; both are reduced
// to the lower-cased host. If the file does not exist, it returns
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for key, site := range cf.Sites {
		host := siteKeyOf(key)
		if _, dup := sites[host]; dup {
			return nil, fmt.Errorf("duplicate site entry for %s", host)
		}
		sites[host] = site
	}
	cf.Sites = sites

	return &cf, nil
}

// siteKeyOf reduces a sites entry key to the form SiteKey produces.
func siteKeyOf(key string) string {
	key = strings.TrimSpace(key)
	if strings.Contains(key, "://") {
		return SiteKey(key)
	}
	return strings.ToLower(strings.TrimSuffix(key, "/"))
}

// FindConfigFile returns the configuration file to use, or "" when there
// is none. An explicit configPath is used only if it exists. Otherwise the
// search order is:
//  1. .sitewalk in the current directory
//  2. config.yaml in XDGConfigDir
//  3. .sitewalk in the home directory
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	candidates := []string{filepath.Join(XDGConfigDir(), xdgConfigFile)}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append([]string{filepath.Join(cwd, DefaultConfigFile)}, candidates...)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
