// pkg/provision/schema.go
package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a document would be rejected by the
// twin service anyway, so it is never sent.
var ErrInvalidDocument = errors.New("invalid document")

const thingSchema = `{
  "type": "object",
  "required": ["definition", "attributes", "features"],
  "properties": {
    "policyId":   {"type": "string", "pattern": "^[^:]+:.+$"},
    "definition": {"type": "string", "pattern": "^[^:]+:[^:]+:[^:]+$"},
    "attributes": {"type": "object"},
    "features": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["properties"],
        "properties": {"properties": {"type": "object"}}
      }
    }
  }
}`

const policySchema = `{
  "type": "object",
  "required": ["entries"],
  "properties": {
    "entries": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["subjects", "resources"],
        "properties": {
          "subjects": {
            "type": "object",
            "minProperties": 1,
            "propertyNames": {"pattern": "^[^:]+:.+$"}
          },
          "resources": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "required": ["grant", "revoke"],
              "properties": {
                "grant":  {"type": "array", "items": {"enum": ["READ", "WRITE", "ADMINISTRATE"]}},
                "revoke": {"type": "array"}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	thingSchemaLoader  = gojsonschema.NewStringLoader(thingSchema)
	policySchemaLoader = gojsonschema.NewStringLoader(policySchema)
)

func validate(kind string, schema gojsonschema.JSONLoader, doc any) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%s schema: %w", kind, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidDocument, kind, strings.Join(msgs, "; "))
}

// Validate checks the documents the provisioner would send.
func (p *Provisioner) Validate() error {
	if err := validate("policy", policySchemaLoader, p.PolicyDocument()); err != nil {
		return err
	}
	return validate("thing", thingSchemaLoader, p.ThingDocument())
}
