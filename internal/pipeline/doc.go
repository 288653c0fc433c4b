// Package pipeline drives audio objects through transcription and PII
// redaction. A single control goroutine admits pending items under a
// bounded slot pool and polls in-flight transcription jobs; completed
// transcripts move over a buffered channel to a pool of redaction workers.
// Channel sends transfer ownership of the item, so exactly one goroutine
// works an item at any time.
package pipeline
