package language

import (
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
)

// comprehendLanguages are the primary subtags the PII detection service
// accepts. Transcripts in any other language fall back to English, which
// mirrors how the service itself degrades for mixed-language text.
var comprehendLanguages = map[string]struct{}{
	"en": {}, "es": {}, "fr": {}, "de": {}, "it": {}, "pt": {},
	"ar": {}, "hi": {}, "ja": {}, "ko": {}, "zh": {},
}

// Normalize parses a locale code such as "en-IN" or "hi_in" and returns the
// canonical BCP 47 form. Unrecognized codes return an error.
func Normalize(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("language code is empty")
	}
	tag, err := xlang.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", trimmed, err)
	}
	return tag.String(), nil
}

// NormalizeList canonicalizes and deduplicates a list of locale codes,
// preserving order. Any unparseable entry fails the whole list so bad
// configuration surfaces at startup instead of at submit time.
func NormalizeList(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		canonical, err := Normalize(code)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		normalized = append(normalized, canonical)
	}
	return normalized, nil
}

// Primary returns the primary language subtag for a locale code: "en" for
// "en-IN". Unparseable input returns the empty string.
func Primary(code string) string {
	tag, err := xlang.Parse(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// ComprehendCode selects the PII-detection language code for a set of
// candidate locale codes, in preference order. The first candidate whose
// primary subtag the service supports wins; with no usable candidate the
// fallback is "en".
func ComprehendCode(candidates ...string) string {
	for _, candidate := range candidates {
		primary := Primary(candidate)
		if primary == "" {
			continue
		}
		if _, ok := comprehendLanguages[primary]; ok {
			return primary
		}
	}
	return "en"
}
