// Package config provides the run configuration for sitewalk: traversal
// limits, timeouts, report and screenshot locations, login settings and
// the optional .sitewalk YAML file with per-site overrides.
package config
