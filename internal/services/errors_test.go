package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/smithy-go"

	"bleep/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "transcribe", "start job", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribe", "start job", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "redact", "detect", "failed", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{services.ErrTransient, true},
		{services.ErrThrottled, true},
		{services.ErrValidation, false},
		{services.ErrConfiguration, false},
		{services.ErrNotFound, false},
		{services.ErrTimeout, false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
		if got := services.Retryable(err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
}

func TestFatal(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "startup", "load credentials", "missing", nil)
	if !services.Fatal(fatal) {
		t.Fatalf("expected configuration error to be fatal")
	}
	if services.Fatal(services.Wrap(services.ErrValidation, "stage", "op", "bad input", nil)) {
		t.Fatal("validation errors must not be fatal")
	}
}

type fakeAPIError struct {
	code  string
	fault smithy.ErrorFault
}

func (e *fakeAPIError) Error() string                 { return e.code }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return e.fault }

func TestClassifyAWS(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"throttling", &fakeAPIError{code: "ThrottlingException"}, services.ErrThrottled},
		{"limit exceeded", &fakeAPIError{code: "LimitExceededException"}, services.ErrThrottled},
		{"bad request", &fakeAPIError{code: "BadRequestException"}, services.ErrValidation},
		{"access denied", &fakeAPIError{code: "AccessDeniedException"}, services.ErrConfiguration},
		{"missing bucket", &fakeAPIError{code: "NoSuchBucket"}, services.ErrConfiguration},
		{"missing key", &fakeAPIError{code: "NoSuchKey"}, services.ErrNotFound},
		{"server fault", &fakeAPIError{code: "Whatever", fault: smithy.FaultServer}, services.ErrTransient},
		{"client fault", &fakeAPIError{code: "Whatever", fault: smithy.FaultClient}, services.ErrValidation},
		{"plain network", errors.New("connection reset"), services.ErrTransient},
		{"canceled", context.Canceled, services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.ClassifyAWS(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("ClassifyAWS(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
	if services.ClassifyAWS(nil) != nil {
		t.Fatal("nil error must classify as nil")
	}
}
