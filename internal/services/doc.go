// Package services defines shared utilities consumed by the pipeline core and
// the provider clients beneath it.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures as
//     transient, throttled, terminal-per-item, or fatal for the run.
//   - ClassifyAWS, which folds SDK error codes into those markers so every
//     provider client retries on the same rules.
//   - Context helpers that stamp work item IDs, stage names, and correlation
//     identifiers for logging.
//
// Use these helpers when wiring new provider calls so retry behaviour and
// observability stay uniform across the pipeline.
package services
