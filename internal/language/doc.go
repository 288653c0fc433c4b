// Package language provides locale code normalization for the pipeline.
//
// Transcription accepts full BCP 47 locale codes (en-IN, hi-IN) while PII
// detection only understands a small set of primary subtags. All conversions
// between the two live here so configuration parsing and the redaction stage
// agree on what a language hint means.
package language
