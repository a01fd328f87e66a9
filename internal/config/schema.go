package config

import (
	"strings"

	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/xeipuuv/gojsonschema"
)

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "version": {"type": "integer"},
    "registrar": {
      "type": "object",
      "properties": {
        "base_url": {"type": "string", "pattern": "^https?://"},
        "timeout_ms": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    },
    "credentialStores": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["literal", "env", "keyring", "aws.secretsmanager", "vault"]},
          "timeout_ms": {"type": "integer", "minimum": 0}
        }
      }
    },
    "identifierSource": {
      "type": "object",
      "required": ["driver", "dsn"],
      "properties": {
        "driver": {"enum": ["postgres", "mysql"]},
        "dsn": {"type": "string", "minLength": 1},
        "table": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"}
      },
      "additionalProperties": false
    },
    "identifiers": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["entity", "bundle", "field", "state_key"],
        "properties": {
          "entity": {"type": "string", "minLength": 1},
          "bundle": {"type": "string", "minLength": 1},
          "field": {"type": "string", "minLength": 1},
          "state_key": {"type": "string", "minLength": 1},
          "shoulder": {"type": "string"},
          "credential_store": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// validateSchema checks a decoded pidops.yaml document against the
// definition schema.
func validateSchema(doc map[string]interface{}) error {
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return dserrors.ConfigError{
			Message:    "schema validation error",
			Suggestion: err.Error(),
		}
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Fix the listed fields in pidops.yaml",
		}
	}

	return nil
}
