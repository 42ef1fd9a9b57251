package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrEmptyResponse means the service returned no content.
	ErrEmptyResponse = errors.New("empty response from ai service")
	// ErrValidation means the response did not match the expected schema.
	ErrValidation = errors.New("ai response failed validation")
)

var codeFence = regexp.MustCompile("^```(?:json)?\\s*([\\s\\S]*?)\\s*```$")

// listFields are normalised from objects or bare strings into string lists.
var listFields = []string{"child_issues", "inferredCategories", "keywords", "environments"}

// Parse decodes a model response into the variant for kind.
func Parse(kind Kind, text string) (Result, error) {
	body := StripCodeFence(text)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: response is not a JSON object: %v", ErrValidation, err)
	}
	Normalize(payload)

	if err := validate(kind, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	switch kind {
	case KindBug:
		var r BugAnalysis
		return decodeInto(data, &r)
	case KindEpic:
		var r EpicAnalysis
		return decodeInto(data, &r)
	default:
		var r GenericAnalysis
		return decodeInto(data, &r)
	}
}

func decodeInto[T Result](data []byte, dst *T) (Result, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return *dst, nil
}

// StripCodeFence removes a surrounding markdown code fence, if present.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Normalize repairs common shape deviations in place: null values are
// dropped, and list fields given as objects become sorted "key: value"
// strings.
func Normalize(payload map[string]any) {
	for k, v := range payload {
		if v == nil {
			delete(payload, k)
		}
	}
	for _, field := range listFields {
		switch v := payload[field].(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			items := make([]any, 0, len(keys))
			for _, k := range keys {
				items = append(items, fmt.Sprintf("%s: %v", k, v[k]))
			}
			payload[field] = items
		case string:
			if strings.TrimSpace(v) == "" {
				delete(payload, field)
			} else {
				payload[field] = []any{v}
			}
		}
	}
}
