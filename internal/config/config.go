// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the helper's YAML configuration document and
// applies the hardcoded defaults for its helper and web sections.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"kitero.dev/kitero/internal/kerrors"
	"kitero.dev/kitero/internal/kitrouter"
)

// Helper holds the RPC listen address and state directory for the
// helper process. MetricsListen, if set, additionally serves
// Prometheus gauges over HTTP at /metrics so an operator can scrape
// the helper directly instead of going through the web gateway.
type Helper struct {
	Listen        string `yaml:"listen"`
	Port          int    `yaml:"port"`
	StateDir      string `yaml:"state_dir"`
	MetricsListen string `yaml:"metrics_listen"`
}

// Web holds the (out-of-scope, but still parsed for forward
// compatibility with the shared config file) web gateway section.
type Web struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
	Debug  bool   `yaml:"debug"`
	Expire int    `yaml:"expire"`
}

// Document is the raw top-level YAML document: helper/web sections
// plus the router document defined in internal/kitrouter.
type Document struct {
	Helper Helper             `yaml:"helper"`
	Web    Web                `yaml:"web"`
	Router kitrouter.Document `yaml:"router"`
}

// Defaults returns the hardcoded defaults the helper falls back to
// when a section, or a field within it, is absent from the loaded
// document.
func Defaults() Document {
	return Document{
		Helper: Helper{Listen: "127.0.0.1", Port: 18861, StateDir: "/var/lib/kitero"},
		Web:    Web{Listen: "0.0.0.0", Port: 8187, Expire: 15 * 60},
	}
}

// Load reads and parses the YAML document at path, then merges it
// over Defaults() so a document that specifies only `router:` still
// gets sensible helper/web values.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, kerrors.Wrapf(err, kerrors.KindConfiguration, "config: reading %q", path)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, kerrors.Wrapf(err, kerrors.KindConfiguration, "config: parsing %q", path)
	}

	return Merge(doc, Defaults()), nil
}
