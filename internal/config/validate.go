package config

import (
	"errors"
	"fmt"

	"bleep/internal/language"
)

// mediaFormats are the audio container formats the transcription provider accepts.
var mediaFormats = map[string]struct{}{
	"mp3": {}, "mp4": {}, "wav": {}, "flac": {}, "ogg": {}, "amr": {}, "webm": {}, "m4a": {},
}

// Validate ensures the configuration is usable. Bucket names are required;
// everything else has defaults.
func (c *Config) Validate() error {
	if err := c.validateBuckets(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateRedaction(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBuckets() error {
	required := []struct {
		value string
		field string
		env   string
	}{
		{c.Buckets.Input, "buckets.input", EnvInputBucket},
		{c.Buckets.Transcripts, "buckets.transcripts", EnvTranscriptsBucket},
		{c.Buckets.Redacted, "buckets.redacted", EnvRedactedBucket},
	}
	for _, r := range required {
		if r.value == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/bleep/config.toml"
			}
			return fmt.Errorf("%s is required. Set %s or edit %s (create with 'bleep config init')", r.field, r.env, defaultPath)
		}
	}
	if c.Buckets.Input == c.Buckets.Redacted {
		return errors.New("buckets.input and buckets.redacted must differ; redacted output would shadow unprocessed audio")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if len(c.Transcription.Languages) == 0 {
		return errors.New("transcription.languages must list at least one locale code")
	}
	normalized, err := language.NormalizeList(c.Transcription.Languages)
	if err != nil {
		return fmt.Errorf("transcription.languages: %w", err)
	}
	c.Transcription.Languages = normalized
	if c.Transcription.MaxConcurrentJobs <= 0 {
		return errors.New("transcription.max_concurrent_jobs must be positive")
	}
	if _, ok := mediaFormats[c.Transcription.MediaFormat]; !ok {
		return fmt.Errorf("transcription.media_format: unsupported value %q", c.Transcription.MediaFormat)
	}
	if c.Transcription.PollInterval <= 0 {
		return errors.New("transcription.poll_interval must be positive")
	}
	if c.Transcription.JobTimeout <= c.Transcription.PollInterval {
		return errors.New("transcription.job_timeout must exceed transcription.poll_interval")
	}
	if c.Transcription.ShowSpeakerLabels && c.Transcription.MaxSpeakerLabels < 2 {
		return errors.New("transcription.max_speaker_labels must be at least 2 when speaker labels are enabled")
	}
	return nil
}

func (c *Config) validateRedaction() error {
	if c.Redaction.Workers <= 0 {
		return errors.New("redaction.workers must be positive")
	}
	if c.Redaction.RetryBackoff < 0 {
		return errors.New("redaction.retry_backoff must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.TickInterval <= 0 {
		return errors.New("workflow.tick_interval must be positive")
	}
	if c.Workflow.MaxAttempts < 1 {
		return errors.New("workflow.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
