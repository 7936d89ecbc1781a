// Package batch runs fix routines over directories of documents: it plans
// the per-document jobs, runs them on a small worker pool and reports the
// outcome of each document.
package batch

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix"
	"github.com/agentflare-ai/go-xsdfix/bsync"
)

// Config controls a run. Zero values in a loaded file fall back to
// DefaultConfig.
type Config struct {
	// Schema is the XSD used for ordering lookups.
	Schema string `yaml:"schema"`
	// Workers is the number of documents processed at once.
	Workers int `yaml:"workers"`
	// Reprocess overwrites outputs that already exist instead of skipping them.
	Reprocess bool `yaml:"reprocess"`
	// DryRun prints a diff per document instead of writing it.
	DryRun bool `yaml:"dry_run"`
	// Indent is the number of spaces per level in written documents.
	Indent int `yaml:"indent"`
	// Conservative lists the element names whose numeric duplicates keep
	// the smaller value.
	Conservative []string      `yaml:"conservative"`
	Catalogue    bsync.Options `yaml:"catalogue"`
}

// DefaultConfig returns the settings of the BuildingSync 2.0 migration.
func DefaultConfig() Config {
	return Config{
		Schema:       "schema_2_0.xsd",
		Workers:      1,
		Indent:       xsdfix.DefaultIndent,
		Conservative: xsdfix.DefaultDedupePolicy().Conservative,
		Catalogue:    bsync.DefaultOptions(),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithStack(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings that would make a run fail late.
func (c Config) Validate() error {
	if c.Schema == "" {
		return errors.New("config: schema is required")
	}
	if c.Workers < 1 {
		return errors.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.Indent < 0 {
		return errors.Errorf("config: indent must not be negative, got %d", c.Indent)
	}
	for _, conv := range c.Catalogue.Conversions {
		if conv.Factor == 0 {
			return errors.Errorf("config: conversion of %s from %s has no factor", conv.Resource, conv.From)
		}
	}
	return nil
}

// Engine loads the configured schema through cache and builds an engine
// with the configured dedupe policy.
func (c Config) Engine(cache *xsdfix.SchemaCache) (*xsdfix.Engine, error) {
	idx, err := cache.Index(c.Schema)
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", c.Schema)
	}
	engine := xsdfix.NewEngine(idx)
	engine.Policy = xsdfix.DedupePolicy{Conservative: c.Conservative}
	return engine, nil
}
