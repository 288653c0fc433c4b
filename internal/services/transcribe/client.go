package transcribe

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"

	"bleep/internal/config"
	"bleep/internal/pipeline"
	"bleep/internal/services"
)

// api is the subset of the Transcribe client the adapter uses.
type api interface {
	StartTranscriptionJob(ctx context.Context, params *awstranscribe.StartTranscriptionJobInput, optFns ...func(*awstranscribe.Options)) (*awstranscribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *awstranscribe.GetTranscriptionJobInput, optFns ...func(*awstranscribe.Options)) (*awstranscribe.GetTranscriptionJobOutput, error)
}

// Client starts and polls transcription jobs.
type Client struct {
	api               api
	outputBucket      string
	mediaFormat       string
	languages         []string
	showSpeakerLabels bool
	maxSpeakerLabels  int
}

// New wraps a Transcribe client configured from the pipeline settings.
func New(client *awstranscribe.Client, cfg *config.Config) *Client {
	return newWithAPI(client, cfg)
}

func newWithAPI(client api, cfg *config.Config) *Client {
	return &Client{
		api:               client,
		outputBucket:      cfg.Buckets.Transcripts,
		mediaFormat:       cfg.Transcription.MediaFormat,
		languages:         cfg.Transcription.Languages,
		showSpeakerLabels: cfg.Transcription.ShowSpeakerLabels,
		maxSpeakerLabels:  cfg.Transcription.MaxSpeakerLabels,
	}
}

// newJobName returns a provider-unique job name. The transcript object is
// written under this name so the key is derivable without inspecting the
// job's transcript URI.
func newJobName() string {
	return "job-" + uuid.NewString()[:8]
}

// Submit starts one transcription job for the given source object.
func (c *Client) Submit(ctx context.Context, req pipeline.SubmitRequest) (pipeline.SubmitResult, error) {
	jobName := newJobName()
	transcriptKey := jobName + ".json"

	input := &awstranscribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media: &types.Media{
			MediaFileUri: aws.String(fmt.Sprintf("s3://%s/%s", req.Bucket, req.Key)),
		},
		MediaFormat:      types.MediaFormat(c.mediaFormat),
		OutputBucketName: aws.String(c.outputBucket),
		OutputKey:        aws.String(transcriptKey),
	}

	switch {
	case req.LanguageHint != "":
		input.LanguageCode = types.LanguageCode(req.LanguageHint)
	case len(c.languages) == 1:
		input.LanguageCode = types.LanguageCode(c.languages[0])
	default:
		input.IdentifyLanguage = aws.Bool(true)
		options := make([]types.LanguageCode, 0, len(c.languages))
		for _, code := range c.languages {
			options = append(options, types.LanguageCode(code))
		}
		input.LanguageOptions = options
	}

	if c.showSpeakerLabels {
		input.Settings = &types.Settings{
			ShowSpeakerLabels: aws.Bool(true),
			MaxSpeakerLabels:  aws.Int32(int32(c.maxSpeakerLabels)),
		}
	}

	if _, err := c.api.StartTranscriptionJob(ctx, input); err != nil {
		return pipeline.SubmitResult{}, services.Wrap(services.ClassifyAWS(err), "transcription", "submit", req.Key, err)
	}
	return pipeline.SubmitResult{JobName: jobName, TranscriptKey: transcriptKey}, nil
}

// Poll reports the current state of a job.
func (c *Client) Poll(ctx context.Context, jobName string) (pipeline.JobStatus, error) {
	output, err := c.api.GetTranscriptionJob(ctx, &awstranscribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
	})
	if err != nil {
		return pipeline.JobStatus{}, services.Wrap(services.ClassifyAWS(err), "transcription", "poll", jobName, err)
	}
	job := output.TranscriptionJob
	if job == nil {
		return pipeline.JobStatus{}, services.Wrap(services.ErrTransient, "transcription", "poll", fmt.Sprintf("empty response for %s", jobName), nil)
	}

	switch job.TranscriptionJobStatus {
	case types.TranscriptionJobStatusCompleted:
		return pipeline.JobStatus{State: pipeline.JobStateCompleted}, nil
	case types.TranscriptionJobStatusFailed:
		return pipeline.JobStatus{
			State:         pipeline.JobStateFailed,
			FailureReason: aws.ToString(job.FailureReason),
		}, nil
	default:
		return pipeline.JobStatus{State: pipeline.JobStateRunning}, nil
	}
}
