package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// property is one entry of a generated JSON schema.
type property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Items       *property   `json:"items,omitempty"`
	Properties  *properties `json:"properties,omitempty"`
	Required    []string    `json:"required,omitempty"`
}

// properties marshals in field declaration order so positional arguments
// can be mapped back to names.
type properties struct {
	names []string
	byKey map[string]*property
}

func (p *properties) add(name string, prop *property) {
	if p.byKey == nil {
		p.byKey = make(map[string]*property)
	}
	p.names = append(p.names, name)
	p.byKey[name] = prop
}

// MarshalJSON writes the properties object with keys in declaration order.
func (p *properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.byKey[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type objectSchema struct {
	Type       string      `json:"type"`
	Properties *properties `json:"properties"`
	Required   []string    `json:"required,omitempty"`
}

// SchemaFor generates a JSON schema object from the struct type T.
//
// Property names come from json tags. The desc, required and enum tags set
// the description, the required list and the allowed values:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" desc:"City name" required:"true"`
//	    Unit     string `json:"unit" enum:"celsius,fahrenheit"`
//	}
func SchemaFor[T any]() (json.RawMessage, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("tool: schema: nil type")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool: schema: %s is not a struct", t)
	}

	props, required := structProperties(t)
	return json.Marshal(objectSchema{Type: "object", Properties: props, Required: required})
}

// MustSchemaFor is like SchemaFor but panics on error.
func MustSchemaFor[T any]() json.RawMessage {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

func structProperties(t reflect.Type) (*properties, []string) {
	props := &properties{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := strings.Split(jsonTag, ",")[0]
		if name == "" {
			name = field.Name
		}

		prop := typeToProperty(field.Type)
		prop.Description = field.Tag.Get("desc")
		if enum := field.Tag.Get("enum"); enum != "" {
			for _, v := range strings.Split(enum, ",") {
				prop.Enum = append(prop.Enum, strings.TrimSpace(v))
			}
		}
		if field.Tag.Get("required") == "true" {
			required = append(required, name)
		}
		props.add(name, prop)
	}
	return props, required
}

func typeToProperty(t reflect.Type) *property {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &property{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &property{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &property{Type: "number"}
	case reflect.Bool:
		return &property{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &property{Type: "array", Items: typeToProperty(t.Elem())}
	case reflect.Struct:
		props, required := structProperties(t)
		return &property{Type: "object", Properties: props, Required: required}
	case reflect.Map, reflect.Interface:
		return &property{Type: "object"}
	default:
		return &property{Type: "string"}
	}
}

// ParameterNames returns the property names of a JSON schema object in the
// order they appear in the document.
func ParameterNames(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(schema))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := tok.(string)
		if key != "properties" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
			continue
		}
		return objectKeys(dec)
	}
	return nil
}

func objectKeys(dec *json.Decoder) []string {
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var names []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return names
		}
		name, _ := tok.(string)
		names = append(names, name)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return names
		}
	}
	return names
}
