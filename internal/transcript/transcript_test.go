package transcript_test

import (
	"encoding/json"
	"strings"
	"testing"

	"bleep/internal/transcript"
)

const sampleTranscript = `{
  "jobName": "job-1a2b3c4d",
  "results": {
    "language_code": "en-IN",
    "transcripts": [{"transcript": "My name is Asha Rao"}],
    "items": [
      {"start_time": "0.0", "end_time": "0.4", "speaker_label": "spk_0", "alternatives": [{"confidence": "0.99", "content": "My"}], "type": "pronunciation"},
      {"start_time": "0.4", "end_time": "0.7", "speaker_label": "spk_0", "alternatives": [{"confidence": "0.99", "content": "name"}], "type": "pronunciation"},
      {"start_time": "0.7", "end_time": "0.9", "speaker_label": "spk_0", "alternatives": [{"confidence": "0.99", "content": "is"}], "type": "pronunciation"},
      {"start_time": "0.9", "end_time": "1.3", "speaker_label": "spk_1", "alternatives": [{"confidence": "0.97", "content": "Asha"}], "type": "pronunciation"},
      {"start_time": "1.3", "end_time": "1.6", "speaker_label": "spk_1", "alternatives": [{"confidence": "0.97", "content": "Rao"}], "type": "pronunciation"}
    ]
  },
  "status": "COMPLETED"
}`

func TestParseBuildsTimeline(t *testing.T) {
	doc, err := transcript.Parse([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Language != "en-IN" {
		t.Fatalf("unexpected language: %q", doc.Language)
	}
	if len(doc.Segments) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(doc.Segments))
	}
	if doc.Segments[3].Speaker != "spk_1" || doc.Segments[3].StartTime != "0.9" {
		t.Fatalf("unexpected segment: %+v", doc.Segments[3])
	}
	if got := doc.JoinedText(); got != "My name is Asha Rao" {
		t.Fatalf("unexpected joined text: %q", got)
	}
}

func TestParseDefaultsMissingFields(t *testing.T) {
	payload := `{"results": {"language_code": "hi-IN", "items": [
      {"alternatives": [{"content": "Namaste"}], "type": "pronunciation"}
    ]}}`
	doc, err := transcript.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	segment := doc.Segments[0]
	if segment.StartTime != "0.0" || segment.EndTime != "0.0" || segment.Speaker != "Speaker" {
		t.Fatalf("expected defaults for missing fields, got %+v", segment)
	}
}

func TestParseRejectsEmptyAndInvalid(t *testing.T) {
	if _, err := transcript.Parse([]byte(`{"results": {"items": []}}`)); err == nil {
		t.Fatal("expected error for empty timeline")
	}
	if _, err := transcript.Parse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestApplyRedactedSameWordCount(t *testing.T) {
	doc, err := transcript.Parse([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	doc.ApplyRedacted("My name is [REDACTED: NAME] here")

	got := make([]string, len(doc.Segments))
	for i, segment := range doc.Segments {
		got[i] = segment.Text
	}
	want := []string{"My", "name", "is", "[REDACTED:", "NAME] here"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d: got %q want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestApplyRedactedShorterStream(t *testing.T) {
	doc, err := transcript.Parse([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	doc.ApplyRedacted("My name is")

	if doc.Segments[2].Text != "is" {
		t.Fatalf("unexpected third segment: %q", doc.Segments[2].Text)
	}
	if doc.Segments[3].Text != "" || doc.Segments[4].Text != "" {
		t.Fatalf("expected trailing segments empty, got %q and %q", doc.Segments[3].Text, doc.Segments[4].Text)
	}
}

func TestApplyRedactedLongerStreamAttachesTail(t *testing.T) {
	doc, err := transcript.Parse([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	doc.ApplyRedacted("My name is Asha Rao extra tail")

	last := doc.Segments[len(doc.Segments)-1]
	if last.Text != "Rao extra tail" {
		t.Fatalf("expected tail attached to last segment, got %q", last.Text)
	}
}

func TestMarshalTimeline(t *testing.T) {
	doc, err := transcript.Parse([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	data, err := doc.MarshalTimeline()
	if err != nil {
		t.Fatalf("MarshalTimeline failed: %v", err)
	}

	var decoded []map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(decoded) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(decoded))
	}
	if decoded[0]["text"] != "My" || decoded[0]["speaker"] != "spk_0" {
		t.Fatalf("unexpected first entry: %v", decoded[0])
	}
	if !strings.Contains(string(data), `"start_time"`) {
		t.Fatalf("expected snake_case keys, got %s", data)
	}
}
