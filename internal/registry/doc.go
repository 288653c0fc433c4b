// Package registry tracks the lifecycle of audio objects during a pipeline
// run. Items move pending -> submitted -> transcribed -> redacting ->
// completed, with failed reachable from any non-terminal state and the
// retry transitions submitted -> pending and redacting -> transcribed.
// State lives in memory for the duration of one run; completed work is
// detected across runs by the presence of output objects, not by the
// registry.
package registry
