package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrTransient marks failures worth retrying: network blips, timeouts on
	// individual calls, provider 5xx responses.
	ErrTransient = errors.New("transient failure")
	// ErrThrottled marks rate-limit rejections. Retryable, but callers should
	// back off before the next attempt.
	ErrThrottled = errors.New("throttled")
	// ErrValidation marks per-item failures the provider will never accept
	// (bad input, unsupported format). Terminal for the item.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks credential or configuration failures. Fatal for
	// the whole run when raised during startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing objects or buckets.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks work that exceeded its wait ceiling.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for retry classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failure should be retried with a bounded
// attempt counter. Everything else is terminal for the item.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrThrottled)
}

// Fatal reports whether a failure should abort a run before any item is
// processed. Only meaningful for errors raised during startup.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// retryableCodes are provider error codes that indicate throttling or
// transient provider-side trouble rather than a problem with the request.
var retryableCodes = map[string]error{
	"ThrottlingException":         ErrThrottled,
	"TooManyRequestsException":    ErrThrottled,
	"LimitExceededException":      ErrThrottled,
	"SlowDown":                    ErrThrottled,
	"RequestTimeout":              ErrTransient,
	"ServiceUnavailable":          ErrTransient,
	"ServiceUnavailableException": ErrTransient,
	"InternalError":               ErrTransient,
	"InternalFailure":             ErrTransient,
	"InternalServerException":     ErrTransient,
}

var terminalCodes = map[string]error{
	"BadRequestException":            ErrValidation,
	"InvalidRequestException":        ErrValidation,
	"ValidationException":            ErrValidation,
	"ConflictException":              ErrValidation,
	"UnsupportedLanguageException":   ErrValidation,
	"TextSizeLimitExceededException": ErrValidation,
	"AccessDeniedException":          ErrConfiguration,
	"UnrecognizedClientException":    ErrConfiguration,
	"InvalidSignatureException":      ErrConfiguration,
	"ExpiredTokenException":          ErrConfiguration,
	"NoSuchBucket":                   ErrConfiguration,
	"NoSuchKey":                      ErrNotFound,
	"NotFound":                       ErrNotFound,
	"NotFoundException":              ErrNotFound,
}

// ClassifyAWS maps an AWS SDK error to the sentinel marker that drives retry
// decisions. Unknown API codes and plain transport errors classify as
// transient, which keeps the bounded attempt counter as the safety net.
func ClassifyAWS(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTransient
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if marker, ok := retryableCodes[code]; ok {
			return marker
		}
		if marker, ok := terminalCodes[code]; ok {
			return marker
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return ErrTransient
		}
		return ErrValidation
	}
	return ErrTransient
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
