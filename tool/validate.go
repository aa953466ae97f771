package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateArguments checks decoded arguments against a tool's JSON schema.
// Failures are reported against the offending argument when one can be
// singled out: a missing required argument, an unknown argument of a closed
// schema, or a value that fails its property schema. A schema that parses but
// cannot be resolved, such as one referring to external documents, is not
// enforced.
func ValidateArguments(name string, schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	v, err := compile(schema)
	if err != nil {
		return &ValidationError{Tool: name, Reason: fmt.Sprintf("unreadable schema: %v", err)}
	}
	if v.root == nil {
		return nil
	}
	instance, err := normalize(args)
	if err != nil {
		return &ValidationError{Tool: name, Reason: err.Error()}
	}
	err = v.root.Validate(instance)
	if err == nil {
		return nil
	}
	if ve := v.attribute(name, instance); ve != nil {
		return ve
	}
	return &ValidationError{Tool: name, Reason: err.Error()}
}

// validator is a resolved tool schema plus its resolved property schemas.
// root is nil when the schema could not be resolved.
type validator struct {
	schema *jsonschema.Schema
	root   *jsonschema.Resolved
	props  map[string]*jsonschema.Resolved
}

var validators sync.Map // schema text -> *validator

func compile(raw json.RawMessage) (*validator, error) {
	key := string(raw)
	if v, ok := validators.Load(key); ok {
		return v.(*validator), nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	// Remote tools declare assorted drafts; the keywords used for
	// arguments are common to all of them.
	s.Schema = ""

	v := &validator{schema: &s, props: map[string]*jsonschema.Resolved{}}
	if root, err := s.Resolve(&jsonschema.ResolveOptions{}); err == nil {
		v.root = root
	}
	for prop, ps := range s.Properties {
		// Properties with references into the root cannot be resolved
		// alone; their failures are reported without a field.
		if rp, err := resolveCopy(ps); err == nil {
			v.props[prop] = rp
		}
	}
	actual, _ := validators.LoadOrStore(key, v)
	return actual.(*validator), nil
}

// resolveCopy resolves a detached copy of a subschema.
func resolveCopy(s *jsonschema.Schema) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var sub jsonschema.Schema
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return sub.Resolve(&jsonschema.ResolveOptions{})
}

// attribute finds the argument responsible for a failed validation.
func (v *validator) attribute(name string, args map[string]any) *ValidationError {
	for _, field := range v.schema.Required {
		if _, ok := args[field]; !ok {
			return &ValidationError{Tool: name, Field: field, Reason: "missing required argument"}
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ps, declared := v.schema.Properties[key]
		if !declared {
			if closed(v.schema) {
				return &ValidationError{Tool: name, Field: key, Reason: "unknown argument"}
			}
			continue
		}
		rp, ok := v.props[key]
		if !ok {
			continue
		}
		if err := rp.Validate(args[key]); err != nil {
			reason := describe(ps)
			if reason == "" {
				reason = err.Error()
			}
			return &ValidationError{Tool: name, Field: key, Reason: reason}
		}
	}
	return nil
}

// closed reports whether the schema rejects properties it does not declare.
func closed(s *jsonschema.Schema) bool {
	ap := s.AdditionalProperties
	return ap != nil && ap.Not != nil && reflect.DeepEqual(ap.Not, &jsonschema.Schema{})
}

// describe states the constraints of a property schema for the model.
func describe(s *jsonschema.Schema) string {
	var parts []string
	if s.Type != "" {
		parts = append(parts, s.Type)
	} else if len(s.Types) > 0 {
		parts = append(parts, strings.Join(s.Types, " or "))
	}
	if len(s.Enum) > 0 {
		parts = append(parts, fmt.Sprintf("one of %v", s.Enum))
	}
	if len(parts) == 0 {
		return ""
	}
	return "must be " + strings.Join(parts, ", ")
}

// normalize converts arguments to the plain JSON values a decoder produces,
// so integers built by Go callers validate the same as decoded ones.
func normalize(args map[string]any) (map[string]any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments are not JSON values: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeArguments parses a tool call's JSON arguments into a map.
// Empty arguments decode to an empty map.
func DecodeArguments(name, arguments string) (map[string]any, error) {
	args := map[string]any{}
	if arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, &ValidationError{Tool: name, Reason: fmt.Sprintf("arguments are not a JSON object: %v", err)}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
