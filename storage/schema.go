package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://checklist.local/checklist.schema.json"

//go:embed checklist.schema.json
var schemaSource []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// SchemaViolation is one schema failure inside a checklist document.
type SchemaViolation struct {
	Path    string // slash-separated location, "" for the document root
	Message string
}

func (v SchemaViolation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// SchemaError lists every violation found by ValidateDocument.
type SchemaError struct {
	Violations []SchemaViolation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "checklist does not match schema: " + strings.Join(parts, "; ")
}

func checklistSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("add checklist schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a checklist document strictly: every entry needs a
// non-empty string name and a boolean checked flag. The live load and HTTP
// paths do not apply it; it backs the validate command.
func ValidateDocument(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := checklistSchema()
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		result := &SchemaError{}
		collectViolations(result, ve)
		return result
	}
	return nil
}

func collectViolations(result *SchemaError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		result.Violations = append(result.Violations, SchemaViolation{
			Path:    strings.TrimPrefix(err.InstanceLocation, "/"),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collectViolations(result, cause)
	}
}
