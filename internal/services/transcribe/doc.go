// Package transcribe adapts the Amazon Transcribe batch API to the
// pipeline's transcriber interface.
package transcribe
