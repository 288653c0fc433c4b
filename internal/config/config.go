package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Buckets names the S3 buckets the pipeline reads from and writes to.
type Buckets struct {
	Input       string `toml:"input"`
	Transcripts string `toml:"transcripts"`
	Redacted    string `toml:"redacted"`
}

// AWS contains client construction settings. Credentials come from the
// default SDK chain (environment, shared config, instance role).
type AWS struct {
	Region  string `toml:"region"`
	Profile string `toml:"profile"`
}

// Transcription contains settings for the transcription stage.
type Transcription struct {
	Languages         []string `toml:"languages"`
	MaxConcurrentJobs int      `toml:"max_concurrent_jobs"`
	MediaFormat       string   `toml:"media_format"`
	PollInterval      int      `toml:"poll_interval"`
	JobTimeout        int      `toml:"job_timeout"`
	ShowSpeakerLabels bool     `toml:"show_speaker_labels"`
	MaxSpeakerLabels  int      `toml:"max_speaker_labels"`
}

// Redaction contains settings for the redaction worker pool.
type Redaction struct {
	Workers      int `toml:"workers"`
	RetryBackoff int `toml:"retry_backoff"`
}

// Workflow contains pipeline timing and retry budgets.
type Workflow struct {
	TickInterval int `toml:"tick_interval"`
	MaxAttempts  int `toml:"max_attempts"`
}

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates every knob the pipeline and CLI need.
//
// Sections by subsystem:
//   - Buckets: input audio, transcript output, redacted output
//   - AWS: region and optional shared-config profile
//   - Transcription: languages, concurrency ceiling, polling cadence
//   - Redaction: worker pool size and retry backoff
//   - Workflow: control loop tick and per-stage attempt budget
//   - Paths: log and state directories
//   - Logging: format and level
type Config struct {
	Buckets       Buckets       `toml:"buckets"`
	AWS           AWS           `toml:"aws"`
	Transcription Transcription `toml:"transcription"`
	Redaction     Redaction     `toml:"redaction"`
	Workflow      Workflow      `toml:"workflow"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bleep/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file is read, so operators can point the
// same config at different buckets per deployment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bleep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
