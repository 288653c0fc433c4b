package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is one word or punctuation token with its timing and speaker.
type Segment struct {
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Speaker   string `json:"speaker"`
}

// Document is a parsed transcript timeline.
type Document struct {
	Language string
	Segments []Segment
}

// providerResult mirrors the transcript JSON the transcription service
// writes: results.items carries the token stream, each with alternatives
// holding the recognized content.
type providerResult struct {
	Results struct {
		LanguageCode string `json:"language_code"`
		Items        []struct {
			StartTime    string `json:"start_time"`
			EndTime      string `json:"end_time"`
			SpeakerLabel string `json:"speaker_label"`
			Alternatives []struct {
				Content string `json:"content"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

// Parse decodes provider transcript JSON into a timeline document.
// Tokens without timing keep "0.0" and tokens without a speaker label get
// the generic "Speaker".
func Parse(data []byte) (*Document, error) {
	var raw providerResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	doc := &Document{Language: raw.Results.LanguageCode}
	for _, item := range raw.Results.Items {
		start := item.StartTime
		if start == "" {
			start = "0.0"
		}
		end := item.EndTime
		if end == "" {
			end = "0.0"
		}
		speaker := item.SpeakerLabel
		if speaker == "" {
			speaker = "Speaker"
		}
		for _, alt := range item.Alternatives {
			if alt.Content == "" {
				continue
			}
			doc.Segments = append(doc.Segments, Segment{
				Text:      alt.Content,
				StartTime: start,
				EndTime:   end,
				Speaker:   speaker,
			})
		}
	}
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("parse transcript: no recognized content")
	}
	return doc, nil
}

// JoinedText concatenates all segment texts with single spaces, in timeline
// order. This is the text handed to PII detection.
func (d *Document) JoinedText() string {
	parts := make([]string, len(d.Segments))
	for i, segment := range d.Segments {
		parts[i] = segment.Text
	}
	return strings.Join(parts, " ")
}

// ApplyRedacted splices redacted text back over the timeline. The redacted
// string is split on whitespace and each segment takes as many words as its
// original text had. Redaction markers can change the word count, so the
// walk clamps at both ends: segments past the end of the redacted stream
// become empty rather than panicking, and leftover words attach to the
// final segment.
func (d *Document) ApplyRedacted(redacted string) {
	words := strings.Fields(redacted)
	index := 0
	for i := range d.Segments {
		count := len(strings.Fields(d.Segments[i].Text))
		if index >= len(words) {
			d.Segments[i].Text = ""
			continue
		}
		end := index + count
		if end > len(words) {
			end = len(words)
		}
		if i == len(d.Segments)-1 {
			end = len(words)
		}
		d.Segments[i].Text = strings.Join(words[index:end], " ")
		index = end
	}
}

// MarshalTimeline encodes the timeline as the JSON array written to the
// redacted bucket.
func (d *Document) MarshalTimeline() ([]byte, error) {
	data, err := json.Marshal(d.Segments)
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	return data, nil
}
