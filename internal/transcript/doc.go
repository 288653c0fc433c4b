// Package transcript parses transcription provider output into a word
// timeline and splices redacted text back over it while preserving timing
// and speaker attribution.
package transcript
