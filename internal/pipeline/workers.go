package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bleep/internal/language"
	"bleep/internal/logging"
	"bleep/internal/registry"
	"bleep/internal/services"
	"bleep/internal/transcript"
)

// runWorker consumes transcribed items until the channel closes or the run
// is cancelled.
func (d *Driver) runWorker(ctx context.Context, handoff chan int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-handoff:
			if !ok {
				return
			}
			d.redactItem(ctx, handoff, id)
		}
	}
}

// redactItem runs one redaction attempt. Ownership of the item moved here
// with the channel receive; on a retryable failure the item rolls back to
// transcribed and re-enters the channel after a backoff.
func (d *Driver) redactItem(ctx context.Context, handoff chan int64, id int64) {
	item := d.reg.GetByID(id)
	if item == nil || item.Status != registry.StatusTranscribed {
		return
	}

	ctx = services.WithStage(services.WithItemID(ctx, id), "redaction")
	logger := logging.WithContext(ctx, d.logger)

	item.Status = registry.StatusRedacting
	item.Attempts++
	if err := d.reg.Update(item); err != nil {
		logger.Error("failed to claim item for redaction", logging.Error(err))
		return
	}

	if err := d.redactOnce(ctx, item); err != nil {
		d.handleRedactError(ctx, logger, handoff, item, err)
		return
	}

	item.Status = registry.StatusCompleted
	item.ErrorMessage = ""
	if err := d.reg.Update(item); err != nil {
		logger.Error("failed to record completion", logging.Error(err))
		return
	}
	logger.Info("redacted transcript written",
		logging.String(logging.FieldSourceKey, item.SourceKey),
		logging.String("output_key", item.OutputKey),
		logging.String(logging.FieldEventType, "item_completed"),
	)
}

func (d *Driver) redactOnce(ctx context.Context, item *registry.Item) error {
	data, err := d.store.Get(ctx, d.cfg.Buckets.Transcripts, item.TranscriptKey)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}

	doc, err := transcript.Parse(data)
	if err != nil {
		return services.Wrap(services.ErrValidation, "redaction", "parse", "decode transcript", err)
	}

	code := language.ComprehendCode(doc.Language, item.LanguageHint)
	redacted, err := d.red.Redact(ctx, doc.JoinedText(), code)
	if err != nil {
		return fmt.Errorf("detect pii entities: %w", err)
	}

	doc.ApplyRedacted(redacted)
	payload, err := doc.MarshalTimeline()
	if err != nil {
		return services.Wrap(services.ErrValidation, "redaction", "encode", "encode redacted timeline", err)
	}

	if err := d.store.Put(ctx, d.cfg.Buckets.Redacted, item.OutputKey, payload); err != nil {
		return fmt.Errorf("write redacted transcript: %w", err)
	}
	return nil
}

func (d *Driver) handleRedactError(ctx context.Context, logger *slog.Logger, handoff chan int64, item *registry.Item, err error) {
	if services.Fatal(err) {
		d.setFatal(err)
		return
	}
	if ctx.Err() != nil {
		// Cancellation mid-attempt. Leave the item where it is; the run
		// teardown fails everything non-terminal with the stop reason.
		return
	}

	if services.Retryable(err) && item.Attempts < d.cfg.Workflow.MaxAttempts {
		item.Status = registry.StatusTranscribed
		item.ErrorMessage = err.Error()
		if updateErr := d.reg.Update(item); updateErr != nil {
			logger.Error("failed to record redaction retry", logging.Error(updateErr))
			return
		}
		logger.Warn("redaction failed, will retry",
			logging.Error(err),
			logging.String(logging.FieldSourceKey, item.SourceKey),
			logging.Int("attempts", item.Attempts),
			logging.String(logging.FieldEventType, "redaction_retry"),
		)

		if !d.sleep(ctx, d.retryBackoff) {
			return
		}
		select {
		case handoff <- item.ID:
		case <-ctx.Done():
		}
		return
	}

	reason := err.Error()
	if services.Retryable(err) {
		reason = fmt.Sprintf("max attempts exceeded: %s", reason)
	}
	d.failItem(item, reason)
}

// sleep waits for the backoff duration and reports false when the run was
// cancelled first.
func (d *Driver) sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
