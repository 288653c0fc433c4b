package testsupport

import (
	"path/filepath"
	"testing"

	"bleep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with test bucket names and a unique
// temp log directory per test. It defaults common fields and applies any
// provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Buckets = config.Buckets{
		Input:       "test-audio-in",
		Transcripts: "test-audio-transcripts",
		Redacted:    "test-audio-redacted",
	}
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBuckets overrides the bucket names on the test config.
func WithBuckets(input, transcripts, redacted string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Buckets = config.Buckets{Input: input, Transcripts: transcripts, Redacted: redacted}
	}
}

// WithMaxConcurrentJobs overrides the transcription job ceiling.
func WithMaxConcurrentJobs(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.MaxConcurrentJobs = limit
	}
}

// WithWorkers overrides the redaction worker count.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Redaction.Workers = workers
	}
}

// WithMaxAttempts overrides the per-item attempt budget.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxAttempts = attempts
	}
}
