package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidDocument wraps schema violations of a stored document.
var ErrInvalidDocument = errors.New("stored calibration document is invalid")

const profileSchemaURL = "schema://user-calibration-data.json"

const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["userId", "timestamp", "zones"],
  "properties": {
    "userId": {"type": "string"},
    "timestamp": {"type": "string"},
    "zones": {
      "type": "array",
      "maxItems": 5,
      "items": {
        "type": "object",
        "required": ["name", "avgSpeed", "speedRange"],
        "properties": {
          "name": {"enum": ["Zone1", "Zone2", "Zone3", "Zone4", "Zone5"]},
          "avgSpeed": {"type": "number", "minimum": 0},
          "speedRange": {
            "type": "object",
            "required": ["min", "max"],
            "properties": {
              "min": {"type": "number", "minimum": 0},
              "max": {"type": "number", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func profileSchemaCompiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(profileSchema), &doc); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(profileSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(profileSchemaURL)
	})
	return compiledSchema, compileErr
}

// validateDocument checks raw JSON against the profile schema.
func validateDocument(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidDocument, err)
	}
	schema, err := profileSchemaCompiled()
	if err != nil {
		return fmt.Errorf("compile calibration schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}
