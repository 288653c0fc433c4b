// Command bleep transcribes audio objects from an input bucket and writes
// PII-redacted transcripts to an output bucket. The run command drives the
// whole pipeline in one process; history and config provide supporting
// utilities.
package main
