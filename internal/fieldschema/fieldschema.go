// Package fieldschema converts between typed field declarations, as
// supplied by partner destination definitions, and JSON-Schema
// documents consumed by the validation steps and the metadata API.
//
// The conversion is lossless in both directions: converting fields to a
// schema and back preserves every declaration, and a schema produced by
// this package survives a round trip byte-for-byte.
package fieldschema

import (
	"fmt"
	"sort"
)

// Type enumerates the field declaration types.
type Type string

const (
	TypeString   Type = "string"
	TypeText     Type = "text"
	TypeNumber   Type = "number"
	TypeInteger  Type = "integer"
	TypeBoolean  Type = "boolean"
	TypeObject   Type = "object"
	TypeDatetime Type = "datetime"
	TypePassword Type = "password"
)

// Field is one typed field declaration from a destination or action
// definition.
type Field struct {
	Key         string `json:"key"`
	Type        Type   `json:"type"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Multiple    bool   `json:"multiple,omitempty"`
	Dynamic     bool   `json:"dynamic,omitempty"`
	AllowNull   bool   `json:"allowNull,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

const schemaDraft = "http://json-schema.org/draft-07/schema#"

// scalar field types to JSON-Schema type plus distinguishing format.
var typeToSchema = map[Type]struct {
	jsonType string
	format   string
}{
	TypeString:   {"string", ""},
	TypeText:     {"string", "text"},
	TypeDatetime: {"string", "date-time"},
	TypePassword: {"string", "password"},
	TypeNumber:   {"number", ""},
	TypeInteger:  {"integer", ""},
	TypeBoolean:  {"boolean", ""},
	TypeObject:   {"object", ""},
}

// FieldsToSchema builds a JSON-Schema object document from field
// declarations. Unknown-to-JSON-Schema attributes (dynamic,
// placeholder) are carried as x- vendor keywords so the mapping stays
// two-way.
func FieldsToSchema(fields []Field) (map[string]any, error) {
	properties := make(map[string]any, len(fields))
	var required []string

	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("field declaration without a key")
		}
		mapped, ok := typeToSchema[f.Type]
		if !ok {
			return nil, fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}

		prop := make(map[string]any)
		if f.AllowNull {
			prop["type"] = []any{mapped.jsonType, "null"}
		} else {
			prop["type"] = mapped.jsonType
		}
		if mapped.format != "" {
			prop["format"] = mapped.format
		}
		if f.Label != "" {
			prop["title"] = f.Label
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		if f.Dynamic {
			prop["x-dynamic"] = true
		}
		if f.Placeholder != "" {
			prop["x-placeholder"] = f.Placeholder
		}

		if f.Multiple {
			prop = map[string]any{
				"type":  "array",
				"items": prop,
			}
		}

		properties[f.Key] = prop
		if f.Required {
			required = append(required, f.Key)
		}
	}

	sort.Strings(required)
	schema := map[string]any{
		"$schema":              schemaDraft,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

// SchemaToFields recovers field declarations from a schema produced by
// FieldsToSchema. Fields are returned sorted by key.
func SchemaToFields(schema map[string]any) ([]Field, error) {
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema has no properties object")
	}

	requiredSet := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	case []string:
		for _, r := range req {
			requiredSet[r] = true
		}
	}

	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		prop, ok := properties[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("property %q is not an object", key)
		}

		f := Field{Key: key, Required: requiredSet[key]}

		if prop["type"] == "array" {
			items, ok := prop["items"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q: array without items", key)
			}
			f.Multiple = true
			prop = items
		}

		jsonType, allowNull, err := propType(key, prop["type"])
		if err != nil {
			return nil, err
		}
		f.AllowNull = allowNull

		format, _ := prop["format"].(string)
		f.Type, err = declType(key, jsonType, format)
		if err != nil {
			return nil, err
		}

		f.Label, _ = prop["title"].(string)
		f.Description, _ = prop["description"].(string)
		f.Default = prop["default"]
		f.Dynamic, _ = prop["x-dynamic"].(bool)
		f.Placeholder, _ = prop["x-placeholder"].(string)

		fields = append(fields, f)
	}
	return fields, nil
}

// PrivateKeys returns the keys of password-typed fields. These are the
// settings the instrumentation layer must redact.
func PrivateKeys(fields []Field) []string {
	var keys []string
	for _, f := range fields {
		if f.Type == TypePassword {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func propType(key string, raw any) (jsonType string, allowNull bool, err error) {
	switch t := raw.(type) {
	case string:
		return t, false, nil
	case []any:
		if len(t) == 2 && t[1] == "null" {
			if s, ok := t[0].(string); ok {
				return s, true, nil
			}
		}
		return "", false, fmt.Errorf("property %q: unsupported type union %v", key, t)
	default:
		return "", false, fmt.Errorf("property %q: missing type", key)
	}
}

func declType(key, jsonType, format string) (Type, error) {
	switch jsonType {
	case "string":
		switch format {
		case "":
			return TypeString, nil
		case "text":
			return TypeText, nil
		case "date-time":
			return TypeDatetime, nil
		case "password":
			return TypePassword, nil
		}
		return "", fmt.Errorf("property %q: unknown string format %q", key, format)
	case "number":
		return TypeNumber, nil
	case "integer":
		return TypeInteger, nil
	case "boolean":
		return TypeBoolean, nil
	case "object":
		return TypeObject, nil
	default:
		return "", fmt.Errorf("property %q: unsupported type %q", key, jsonType)
	}
}
