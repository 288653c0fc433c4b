// Package config loads, normalizes, and validates bleep configuration data.
//
// It supplies repository defaults, expands user paths, reads TOML files, and
// honours environment overrides such as AUDIO_INPUT_BUCKET and
// MAX_PARALLEL_JOBS. The Config type centralizes every knob the pipeline and
// CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized bucket names, canonical locale codes, and clear validation
// errors. A missing bucket is a startup failure, not something to discover
// after jobs are already submitted.
package config
