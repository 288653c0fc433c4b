package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables honoured as overrides. File values lose to these so
// one config file can serve several deployments.
const (
	EnvInputBucket       = "AUDIO_INPUT_BUCKET"
	EnvTranscriptsBucket = "AUDIO_TRANSCRIPTION_BUCKET"
	EnvRedactedBucket    = "AUDIO_TRANSCRIPTION_REDACTION_BUCKET"
	EnvLanguageSupport   = "AUDIO_LANGUAGE_SUPPORT"
	EnvThreadCount       = "THREAD_COUNT"
	EnvMaxParallelJobs   = "MAX_PARALLEL_JOBS"
	EnvRegion            = "AWS_REGION"
)

func (c *Config) normalize() error {
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}

	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	c.Buckets.Input = strings.TrimSpace(c.Buckets.Input)
	c.Buckets.Transcripts = strings.TrimSpace(c.Buckets.Transcripts)
	c.Buckets.Redacted = strings.TrimSpace(c.Buckets.Redacted)
	c.AWS.Region = strings.TrimSpace(c.AWS.Region)
	c.AWS.Profile = strings.TrimSpace(c.AWS.Profile)
	c.Transcription.MediaFormat = strings.ToLower(strings.TrimSpace(c.Transcription.MediaFormat))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := lookupEnv(EnvInputBucket); ok {
		c.Buckets.Input = v
	}
	if v, ok := lookupEnv(EnvTranscriptsBucket); ok {
		c.Buckets.Transcripts = v
	}
	if v, ok := lookupEnv(EnvRedactedBucket); ok {
		c.Buckets.Redacted = v
	}
	if v, ok := lookupEnv(EnvRegion); ok {
		c.AWS.Region = v
	}
	if v, ok := lookupEnv(EnvLanguageSupport); ok {
		parts := strings.Split(v, ",")
		languages := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				languages = append(languages, trimmed)
			}
		}
		c.Transcription.Languages = languages
	}
	if v, ok := lookupEnv(EnvThreadCount); ok {
		count, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid value %q", EnvThreadCount, v)
		}
		c.Redaction.Workers = count
	}
	if v, ok := lookupEnv(EnvMaxParallelJobs); ok {
		count, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid value %q", EnvMaxParallelJobs, v)
		}
		c.Transcription.MaxConcurrentJobs = count
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
