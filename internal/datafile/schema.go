package datafile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SupportedVersions lists the datafile versions Parse accepts.
var SupportedVersions = []string{"2", "3", "4"}

const datafileSchema = `{
  "$schema": "http://json-schema.org/draft-04/schema#",
  "type": "object",
  "properties": {
    "projectId": {"type": "string"},
    "accountId": {"type": "string"},
    "version": {"type": "string"},
    "revision": {"type": "string"},
    "sdkKey": {"type": "string"},
    "environmentKey": {"type": "string"},
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "policy": {"type": "string"},
          "experiments": {"type": "array", "items": {"$ref": "#/definitions/experiment"}}
        },
        "required": ["id", "policy", "experiments"]
      }
    },
    "experiments": {"type": "array", "items": {"$ref": "#/definitions/experiment"}},
    "featureFlags": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "key": {"type": "string"},
          "rolloutId": {"type": "string"},
          "experimentIds": {"type": "array", "items": {"type": "string"}},
          "variables": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "id": {"type": "string"},
                "key": {"type": "string"},
                "type": {"type": "string"},
                "subType": {"type": "string"},
                "defaultValue": {"type": "string"}
              },
              "required": ["id", "key", "type", "defaultValue"]
            }
          }
        },
        "required": ["id", "key"]
      }
    },
    "rollouts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "experiments": {"type": "array", "items": {"$ref": "#/definitions/experiment"}}
        },
        "required": ["id", "experiments"]
      }
    },
    "audiences": {"type": "array", "items": {"$ref": "#/definitions/audience"}},
    "typedAudiences": {"type": "array", "items": {"$ref": "#/definitions/audience"}},
    "attributes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "key": {"type": "string"}
        },
        "required": ["id", "key"]
      }
    },
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "key": {"type": "string"},
          "experimentIds": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["id", "key", "experimentIds"]
      }
    }
  },
  "required": ["version", "revision", "experiments", "groups", "audiences", "attributes", "events"],
  "definitions": {
    "experiment": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "key": {"type": "string"},
        "status": {"type": "string"},
        "layerId": {"type": "string"},
        "audienceIds": {"type": "array", "items": {"type": "string"}},
        "audienceConditions": {"type": "array"},
        "variations": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "key": {"type": "string"},
              "featureEnabled": {"type": "boolean"},
              "variables": {
                "type": "array",
                "items": {
                  "type": "object",
                  "properties": {
                    "id": {"type": "string"},
                    "value": {"type": "string"}
                  },
                  "required": ["id", "value"]
                }
              }
            },
            "required": ["id", "key"]
          }
        }
      },
      "required": ["id", "key", "variations"]
    },
    "audience": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "conditions": {"type": ["string", "array"]}
      },
      "required": ["id", "name", "conditions"]
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(datafileSchema))
})

// validateSchema checks the raw document against the datafile JSON schema.
func validateSchema(document []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile datafile schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatafile, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDatafile, strings.Join(msgs, "; "))
}
