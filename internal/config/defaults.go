package config

const (
	defaultLogDir            = "~/.local/share/bleep/logs"
	defaultRegion            = "ap-south-1"
	defaultMediaFormat       = "mp3"
	defaultMaxConcurrentJobs = 5
	defaultPollInterval      = 30
	defaultJobTimeout        = 7200
	defaultMaxSpeakerLabels  = 2
	defaultWorkers           = 4
	defaultRetryBackoff      = 2
	defaultTickInterval      = 2
	defaultMaxAttempts       = 3
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// defaultLanguages is the supported-language list when none is configured.
var defaultLanguages = []string{"en-IN", "hi-IN"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		AWS: AWS{
			Region: defaultRegion,
		},
		Transcription: Transcription{
			Languages:         append([]string(nil), defaultLanguages...),
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			MediaFormat:       defaultMediaFormat,
			PollInterval:      defaultPollInterval,
			JobTimeout:        defaultJobTimeout,
			ShowSpeakerLabels: true,
			MaxSpeakerLabels:  defaultMaxSpeakerLabels,
		},
		Redaction: Redaction{
			Workers:      defaultWorkers,
			RetryBackoff: defaultRetryBackoff,
		},
		Workflow: Workflow{
			TickInterval: defaultTickInterval,
			MaxAttempts:  defaultMaxAttempts,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
