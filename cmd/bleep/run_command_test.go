package main

import (
	"strings"
	"testing"
	"time"

	"bleep/internal/pipeline"
)

func TestRenderSummaryIncludesCountsAndFailures(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	summary := &pipeline.Summary{
		Discovered: 5,
		Skipped:    2,
		Completed:  4,
		Failed:     1,
		Started:    started,
		Finished:   started.Add(90 * time.Second),
		Failures: []pipeline.ItemFailure{
			{SourceKey: "calls/a.mp3", Reason: "transcription job failed"},
		},
	}

	output := renderSummary(summary)
	for _, want := range []string{"Discovered", "5", "1m30s", "calls/a.mp3", "transcription job failed"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in summary output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Stopped") {
		t.Fatal("stopped row must only appear for stopped runs")
	}
}

func TestRenderSummaryMarksStoppedRuns(t *testing.T) {
	summary := &pipeline.Summary{Stopped: true}
	if !strings.Contains(renderSummary(summary), "Stopped") {
		t.Fatal("expected stopped row")
	}
}

func TestRenderPlan(t *testing.T) {
	output := renderPlan([]string{"calls/a.mp3"}, []string{"calls/b.mp3"})
	if !strings.Contains(output, "process") || !strings.Contains(output, "skip (output exists)") {
		t.Fatalf("unexpected plan output:\n%s", output)
	}

	if got := renderPlan(nil, nil); got != "Nothing to process\n" {
		t.Fatalf("unexpected empty plan output: %q", got)
	}
}
