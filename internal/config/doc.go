// Package config defines the settings shared by mova-viewer and mova-ctl and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills every unset value with its default, so a missing or partial
// file still yields a usable configuration.
package config
