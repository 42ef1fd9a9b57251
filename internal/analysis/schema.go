package analysis

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

type compiled struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	raw      json.RawMessage
}

var (
	schemasOnce sync.Once
	schemas     map[Kind]compiled
	schemasErr  error
)

func loadSchemas() (map[Kind]compiled, error) {
	schemasOnce.Do(func() {
		schemas = make(map[Kind]compiled, 3)
		for kind, build := range map[Kind]func() (*jsonschema.Schema, error){
			KindBug:     func() (*jsonschema.Schema, error) { return jsonschema.For[BugAnalysis](nil) },
			KindEpic:    func() (*jsonschema.Schema, error) { return jsonschema.For[EpicAnalysis](nil) },
			KindGeneric: func() (*jsonschema.Schema, error) { return jsonschema.For[GenericAnalysis](nil) },
		} {
			c, err := compile(build)
			if err != nil {
				schemasErr = fmt.Errorf("%s schema: %w", kind, err)
				return
			}
			schemas[kind] = c
		}
	})
	return schemas, schemasErr
}

func compile(build func() (*jsonschema.Schema, error)) (compiled, error) {
	s, err := build()
	if err != nil {
		return compiled{}, err
	}
	// Models add stray keys; they are ignored when decoding.
	s.AdditionalProperties = nil

	resolved, err := s.Resolve(nil)
	if err != nil {
		return compiled{}, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return compiled{}, err
	}
	return compiled{schema: s, resolved: resolved, raw: raw}, nil
}

// Schema returns the JSON schema the model is asked to follow for kind.
func Schema(kind Kind) (json.RawMessage, error) {
	all, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	return all[kind].raw, nil
}

func validate(kind Kind, payload map[string]any) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	return all[kind].resolved.Validate(payload)
}
