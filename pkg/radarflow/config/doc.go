/*
Package config loads radarflow settings.

# Overview

Two layers are provided. Config wraps a decoded YAML or JSON document
(map[string]any) and offers typed accessors that fall back to a default on
a missing key or mismatched type. Keys may be dotted paths into nested
sections:

	cfg, err := config.FromFile("radarflow.yaml")
	workers := cfg.Int("pool.max_workers", 4)
	idle := cfg.Duration("pool.idle_timeout", time.Minute)

Settings is the typed configuration of a radarflow runtime. LoadSettings
starts from DefaultSettings, overlays the file through Config, then
applies RADARFLOW_* environment variables:

	s, err := config.LoadSettings("radarflow.yaml")
	if err != nil {
	    return err
	}

# Durations

Duration accepts a time.ParseDuration string ("30s", "1m30s"), a number
of seconds, or a time.Duration.

# Thread Safety

Config is safe for concurrent reads. It never modifies the wrapped map.
*/
package config
