// Package reports keeps a local history of pipeline runs. Durable state is
// limited to outcomes; item lifecycle during a run stays in memory.
package reports
