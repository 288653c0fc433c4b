package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bleep/internal/config"
	"bleep/internal/logging"
	"bleep/internal/registry"
	"bleep/internal/services"
)

// OutputKeyFor derives the redacted object key for a source object. Keys
// are stable across runs so a finished item is recognizable by the presence
// of its output.
func OutputKeyFor(sourceKey string) string {
	return "redacted/" + sourceKey + ".json"
}

type watchEntry struct {
	jobName     string
	submittedAt time.Time
}

// Driver coordinates one pipeline run. A single control goroutine owns
// admission and job polling; finished transcripts move to a pool of
// redaction workers over a buffered channel sized so sends never block.
type Driver struct {
	cfg    *config.Config
	reg    *registry.Registry
	store  ObjectStore
	trans  Transcriber
	red    Redactor
	logger *slog.Logger

	slots *slotPool

	tickInterval time.Duration
	pollInterval time.Duration
	jobTimeout   time.Duration
	retryBackoff time.Duration

	mu     sync.Mutex
	watch  map[int64]watchEntry
	fatal  error
	cancel context.CancelFunc
}

// New constructs a driver for one run.
func New(cfg *config.Config, store ObjectStore, trans Transcriber, red Redactor, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{
		cfg:          cfg,
		reg:          registry.New(),
		store:        store,
		trans:        trans,
		red:          red,
		logger:       logger.With(logging.String(logging.FieldComponent, "pipeline")),
		slots:        newSlotPool(cfg.Transcription.MaxConcurrentJobs),
		tickInterval: time.Duration(cfg.Workflow.TickInterval) * time.Second,
		pollInterval: time.Duration(cfg.Transcription.PollInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Transcription.JobTimeout) * time.Second,
		retryBackoff: time.Duration(cfg.Redaction.RetryBackoff) * time.Second,
		watch:        make(map[int64]watchEntry),
	}
}

// Plan lists the source objects a run would process and those it would
// skip because redacted output already exists.
func (d *Driver) Plan(ctx context.Context) (process, skipped []string, err error) {
	keys, err := d.store.List(ctx, d.cfg.Buckets.Input, "")
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "discovery", "list", "list input bucket", err)
	}
	suffix := "." + d.cfg.Transcription.MediaFormat
	for _, key := range keys {
		if !strings.HasSuffix(strings.ToLower(key), suffix) {
			continue
		}
		exists, existsErr := d.store.Exists(ctx, d.cfg.Buckets.Redacted, OutputKeyFor(key))
		if existsErr != nil {
			return nil, nil, services.Wrap(services.ErrConfiguration, "discovery", "head", "check redacted output", existsErr)
		}
		if exists {
			skipped = append(skipped, key)
			continue
		}
		process = append(process, key)
	}
	return process, skipped, nil
}

// Run drives every discovered object through transcription and redaction
// and returns a summary of the outcome. It returns a non-nil error only
// when the run could not start or was cut short by a fatal error; per-item
// failures are reported through the summary.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Started: time.Now().UTC()}

	process, skippedKeys, err := d.Plan(ctx)
	if err != nil {
		return nil, err
	}
	summary.Discovered = len(process)
	summary.Skipped = len(skippedKeys)

	d.logger.Info("run starting",
		logging.Int("discovered", len(process)),
		logging.Int("skipped", len(skippedKeys)),
		logging.Int("max_concurrent_jobs", d.cfg.Transcription.MaxConcurrentJobs),
		logging.Int("workers", d.cfg.Redaction.Workers),
		logging.String(logging.FieldEventType, "run_started"),
	)

	if len(process) == 0 {
		summary.Finished = time.Now().UTC()
		return summary, nil
	}

	for _, key := range process {
		d.reg.Add(key, OutputKeyFor(key), "")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	handoff := make(chan int64, len(process))
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Redaction.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runWorker(runCtx, handoff)
		}()
	}

	tick := time.NewTicker(d.tickInterval)
	defer tick.Stop()
	poll := time.NewTicker(d.pollInterval)
	defer poll.Stop()

	stopped := false
	// First admission happens immediately rather than waiting a tick.
	d.admit(runCtx)

loop:
	for {
		select {
		case <-runCtx.Done():
			stopped = true
			break loop
		case <-tick.C:
			d.admit(runCtx)
			if d.reg.AllTerminal() {
				break loop
			}
		case <-poll.C:
			d.pollSubmitted(runCtx, handoff)
			d.logProgress()
			if d.reg.AllTerminal() {
				break loop
			}
		}
	}

	if stopped {
		// Workers exit through context cancellation. The channel stays
		// open so a worker mid-requeue never sends on a closed channel.
		wg.Wait()
		reason := registry.StopReason
		if fatal := d.fatalErr(); fatal != nil {
			reason = fatal.Error()
		}
		d.reg.FailRemaining(reason)
	} else {
		close(handoff)
		wg.Wait()
	}

	summary.Stopped = stopped
	summary.Finished = time.Now().UTC()
	for _, item := range d.reg.List() {
		switch item.Status {
		case registry.StatusCompleted:
			summary.Completed++
		case registry.StatusFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, ItemFailure{
				SourceKey: item.SourceKey,
				Reason:    item.ErrorMessage,
			})
		}
	}

	d.logger.Info("run finished",
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Bool("stopped", summary.Stopped),
		logging.Duration("duration", summary.Duration()),
		logging.String(logging.FieldEventType, "run_finished"),
	)

	return summary, d.fatalErr()
}

// admit submits pending items while transcription slots are free. Each
// pending item gets at most one submit attempt per tick so a transient
// provider error backs off to the tick interval instead of spinning.
func (d *Driver) admit(ctx context.Context) {
	for _, item := range d.reg.List(registry.StatusPending) {
		if ctx.Err() != nil {
			return
		}
		if !d.slots.TryAcquire() {
			return
		}

		item.Attempts++
		result, err := d.trans.Submit(ctx, SubmitRequest{
			Bucket:       d.cfg.Buckets.Input,
			Key:          item.SourceKey,
			LanguageHint: item.LanguageHint,
		})
		if err != nil {
			d.slots.Release()
			d.handleSubmitError(item, err)
			if services.Fatal(err) {
				d.setFatal(err)
				return
			}
			continue
		}

		item.Status = registry.StatusSubmitted
		item.JobName = result.JobName
		item.TranscriptKey = result.TranscriptKey
		item.SubmittedAt = time.Now().UTC()
		if err := d.reg.Update(item); err != nil {
			d.slots.Release()
			d.logger.Error("failed to record submission", logging.Error(err), logging.Int64(logging.FieldItemID, item.ID))
			continue
		}

		d.mu.Lock()
		d.watch[item.ID] = watchEntry{jobName: result.JobName, submittedAt: item.SubmittedAt}
		d.mu.Unlock()

		d.logger.Info("transcription job submitted",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldSourceKey, item.SourceKey),
			logging.String(logging.FieldJobName, result.JobName),
			logging.Int("slots_in_use", d.slots.InUse()),
			logging.String(logging.FieldEventType, "job_submitted"),
		)
	}
}

func (d *Driver) handleSubmitError(item *registry.Item, err error) {
	if services.Retryable(err) && item.Attempts < d.cfg.Workflow.MaxAttempts {
		item.ErrorMessage = err.Error()
		if updateErr := d.reg.Update(item); updateErr != nil {
			d.logger.Error("failed to record submit retry", logging.Error(updateErr), logging.Int64(logging.FieldItemID, item.ID))
			return
		}
		d.logger.Warn("transcription submit failed, will retry",
			logging.Error(err),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldSourceKey, item.SourceKey),
			logging.Int("attempts", item.Attempts),
			logging.String(logging.FieldEventType, "submit_retry"),
		)
		return
	}

	reason := err.Error()
	if services.Retryable(err) {
		reason = fmt.Sprintf("max attempts exceeded: %s", reason)
	}
	d.failItem(item, reason)
}

// pollSubmitted polls every in-flight job once and routes finished
// transcripts to the redaction workers.
func (d *Driver) pollSubmitted(ctx context.Context, handoff chan<- int64) {
	d.mu.Lock()
	entries := make(map[int64]watchEntry, len(d.watch))
	for id, entry := range d.watch {
		entries[id] = entry
	}
	d.mu.Unlock()

	for id, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		if time.Since(entry.submittedAt) > d.jobTimeout {
			timeoutErr := services.Wrap(services.ErrTimeout, "transcription", "poll",
				fmt.Sprintf("job %s timed out after %s", entry.jobName, d.jobTimeout), nil)
			d.finishJob(id, func(item *registry.Item) {
				d.failItem(item, timeoutErr.Error())
			})
			continue
		}

		status, err := d.trans.Poll(ctx, entry.jobName)
		if err != nil {
			if services.Fatal(err) {
				d.setFatal(err)
				return
			}
			if services.Retryable(err) {
				d.logger.Warn("job poll failed, will retry",
					logging.Error(err),
					logging.Int64(logging.FieldItemID, id),
					logging.String(logging.FieldJobName, entry.jobName),
					logging.String(logging.FieldEventType, "poll_retry"),
				)
				continue
			}
			d.finishJob(id, func(item *registry.Item) {
				d.failItem(item, err.Error())
			})
			continue
		}

		switch status.State {
		case JobStateRunning:
		case JobStateCompleted:
			d.finishJob(id, func(item *registry.Item) {
				item.Status = registry.StatusTranscribed
				item.Attempts = 0
				item.ErrorMessage = ""
				if err := d.reg.Update(item); err != nil {
					d.logger.Error("failed to record transcript", logging.Error(err), logging.Int64(logging.FieldItemID, item.ID))
					return
				}
				d.logger.Info("transcription job completed",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.String(logging.FieldJobName, item.JobName),
					logging.String(logging.FieldEventType, "job_completed"),
				)
				handoff <- item.ID
			})
		case JobStateFailed:
			reason := status.FailureReason
			if reason == "" {
				reason = "transcription job failed"
			}
			d.finishJob(id, func(item *registry.Item) {
				d.failItem(item, reason)
			})
		}
	}
}

// finishJob releases the item's transcription slot, removes it from the
// poll watch list and applies the given outcome.
func (d *Driver) finishJob(id int64, outcome func(*registry.Item)) {
	d.mu.Lock()
	_, watched := d.watch[id]
	delete(d.watch, id)
	d.mu.Unlock()
	if !watched {
		return
	}
	d.slots.Release()

	item := d.reg.GetByID(id)
	if item == nil {
		return
	}
	outcome(item)
}

func (d *Driver) failItem(item *registry.Item, reason string) {
	item.SetFailed(reason)
	if err := d.reg.Update(item); err != nil {
		d.logger.Error("failed to record item failure", logging.Error(err), logging.Int64(logging.FieldItemID, item.ID))
		return
	}
	d.logger.Error("item failed",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldSourceKey, item.SourceKey),
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "item_failed"),
	)
}

func (d *Driver) logProgress() {
	stats := d.reg.Stats()
	d.logger.Info("run progress",
		logging.Int("pending", stats.ByStatus[registry.StatusPending]),
		logging.Int("submitted", stats.ByStatus[registry.StatusSubmitted]),
		logging.Int("transcribed", stats.ByStatus[registry.StatusTranscribed]),
		logging.Int("redacting", stats.ByStatus[registry.StatusRedacting]),
		logging.Int("completed", stats.Completed),
		logging.Int("failed", stats.Failed),
		logging.String(logging.FieldEventType, "run_progress"),
	)
}

func (d *Driver) setFatal(err error) {
	d.mu.Lock()
	if d.fatal == nil {
		d.fatal = err
	}
	cancel := d.cancel
	d.mu.Unlock()

	d.logger.Error("fatal error, stopping run",
		logging.Error(err),
		logging.String(logging.FieldEventType, "run_fatal"),
	)
	if cancel != nil {
		cancel()
	}
}

func (d *Driver) fatalErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}
