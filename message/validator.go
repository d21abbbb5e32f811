package message

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "hume://schema/event.json"

// eventSchemaDoc covers the structural shape of the optional fields.
// schema_version, hostname and tags are checked by hand first so each
// gets its own rejection kind.
const eventSchemaDoc = `{
  "type": "object",
  "properties": {
    "msg":       {"type": ["string", "null"]},
    "task":      {"type": ["string", "null"]},
    "level":     {"type": ["string", "null"]},
    "command":   {"type": ["string", "null"]},
    "timestamp": {"type": ["string", "null"]},
    "extra": {
      "type": ["object", "null"],
      "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
    },
    "process": {
      "type": ["object", "null"],
      "properties": {
        "line_number": {"type": "integer"},
        "tree": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "pid":     {"type": "integer"},
              "order":   {"type": "integer"},
              "cmdline": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func eventSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(eventSchemaDoc), &doc); err != nil {
			schemaErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validator turns raw request bytes into an accepted EventMessage.
// It is safe for concurrent use.
type Validator struct {
	authToken string
}

// NewValidator creates a validator. An empty authToken disables authentication.
func NewValidator(authToken string) *Validator {
	return &Validator{authToken: authToken}
}

// Validate decodes and checks raw. The returned message has every default
// filled in and carries no credentials.
func (v *Validator) Validate(raw []byte) (*EventMessage, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, reject(ErrMalformedPayload, "", err.Error())
	}
	liftEnvelope(doc)

	// Authentication runs before any content check so the outcome for a
	// wrong token never depends on the rest of the message.
	token := stringField(doc, "token")
	if token == "" {
		token = stringField(doc, "auth_token")
	}
	delete(doc, "token")
	delete(doc, "auth_token")
	if v.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.authToken)) != 1 {
		return nil, reject(ErrAuthFailed, "", "")
	}

	version, ok := intField(doc["schema_version"])
	if !ok || !slices.Contains(SupportedVersions, version) {
		return nil, reject(ErrUnsupportedVersion, "", fmt.Sprint(doc["schema_version"]))
	}

	host, _ := doc["hostname"].(string)
	if !ValidHostname(host) {
		return nil, reject(ErrInvalidHostname, "hostname", fmt.Sprintf("%q", host))
	}

	if tags, present := doc["tags"]; present && tags != nil {
		list, isList := tags.([]any)
		if !isList {
			return nil, reject(ErrTypeMismatch, "tags", "expected a sequence")
		}
		for _, tag := range list {
			if _, isString := tag.(string); !isString {
				return nil, reject(ErrTypeMismatch, "tags", "expected a sequence of strings")
			}
		}
	}

	sch, err := eventSchema()
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, reject(ErrTypeMismatch, schemaField(err), "")
	}

	clean, err := json.Marshal(doc)
	if err != nil {
		return nil, reject(ErrMalformedPayload, "", err.Error())
	}
	var m EventMessage
	if err := json.Unmarshal(clean, &m); err != nil {
		return nil, reject(ErrTypeMismatch, "", err.Error())
	}
	m.SchemaVersion = version

	if m.Level != "" {
		level, known := ParseLevel(string(m.Level))
		if !known {
			return nil, reject(ErrInvalidField, "level", fmt.Sprintf("%q", m.Level))
		}
		m.Level = level
	}
	if !m.Command.Valid() {
		return nil, reject(ErrInvalidField, "command", fmt.Sprintf("%q", m.Command))
	}

	m.FillDefaults()
	return &m, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("expected a JSON object")
	}
	return doc, nil
}

// liftEnvelope flattens the legacy {"hume": {...}} envelope sent by older
// clients. Top-level fields win over envelope fields.
func liftEnvelope(doc map[string]any) {
	inner, ok := doc["hume"].(map[string]any)
	if !ok {
		return
	}
	delete(doc, "hume")
	for k, val := range inner {
		switch k {
		case "version":
			k = "schema_version"
		case "humecmd":
			k = "command"
		}
		if _, exists := doc[k]; !exists {
			doc[k] = val
		}
	}
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func intField(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func schemaField(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return strings.Join(ve.InstanceLocation, ".")
}
