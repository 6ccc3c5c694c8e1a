// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package schema reflects JSON Schemas from Go types and validates YAML and
// JSON documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// DurationPattern matches the strings time.ParseDuration accepts for the
// units operators actually use.
const DurationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var durationType = reflect.TypeOf(time.Duration(0))

// Document describes a schema to reflect.
type Document struct {
	ID          string
	Title       string
	Description string
	// Type is a pointer to the Go value the schema describes.
	Type any
}

// Generate reflects d into an indented JSON Schema. Only fields tagged
// jsonschema:"required" are required, and unknown properties are rejected.
func Generate(d Document) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == durationType {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     DurationPattern,
					Description: "Go duration, for example 10s or 1h30m",
				}
			}
			return nil
		},
	}
	s := r.Reflect(d.Type)
	s.ID = jsonschema.ID(d.ID)
	s.Title = d.Title
	s.Description = d.Description

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", d.ID).Wrap(err)
	}
	return data, nil
}

// Validator validates documents against a reflected schema. The schema is
// compiled on first use.
type Validator struct {
	doc      Document
	once     sync.Once
	compiled *jschema.Schema
	err      error
}

// NewValidator returns a Validator for d.
func NewValidator(d Document) *Validator {
	return &Validator{doc: d}
}

func (v *Validator) schema() (*jschema.Schema, error) {
	v.once.Do(func() {
		raw, err := Generate(v.doc)
		if err != nil {
			v.err = err
			return
		}
		parsed, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(v.doc.ID, parsed); err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(err)
			return
		}
		v.compiled, v.err = c.Compile(v.doc.ID)
		if v.err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(v.err)
		}
	})
	return v.compiled, v.err
}

// ValidateJSON validates a JSON document.
func (v *Validator) ValidateJSON(data []byte) error {
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.Code("SCHEMA_INVALID_DOCUMENT").With("format", "json").Wrap(err)
	}
	return v.validate(inst)
}

// ValidateYAML validates a YAML document. An empty document is an empty
// object.
func (v *Validator) ValidateYAML(data []byte) error {
	var inst any
	if err := yaml.Unmarshal(data, &inst); err != nil {
		return oops.Code("SCHEMA_INVALID_DOCUMENT").With("format", "yaml").Wrap(err)
	}
	if inst == nil {
		inst = map[string]any{}
	}
	return v.validate(toJSONTypes(inst))
}

func (v *Validator) validate(inst any) error {
	s, err := v.schema()
	if err != nil {
		return err
	}
	if err := s.Validate(inst); err != nil {
		return oops.Code("SCHEMA_VALIDATION_FAILED").
			With("schema", v.doc.ID).
			Errorf("%s", FormatError(err))
	}
	return nil
}

// toJSONTypes normalizes yaml.v3 output so every value is one the
// validator understands.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(val))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case uint64:
		return json.Number(strconv.FormatUint(val, 10))
	case float64:
		return json.Number(strconv.FormatFloat(val, 'g', -1, 64))
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}

var locationLine = regexp.MustCompile(`^jsonschema validation failed with '[^']*'\s*`)

// FormatError flattens a validation error into one line suitable for a log
// entry or CLI output.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	msg := locationLine.ReplaceAllString(err.Error(), "")
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimSpace(line), "- ")
	}
	return strings.Join(lines, "; ")
}
