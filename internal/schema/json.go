package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// SchemaType handles JSON Schema type field which can be string or array of strings
type SchemaType struct {
	Types []string
}

// UnmarshalJSON handles both string and array forms of type
func (st *SchemaType) UnmarshalJSON(data []byte) error {
	// Try string first
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		st.Types = []string{s}
		return nil
	}

	// Try array of strings
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		st.Types = arr
		return nil
	}

	return fmt.Errorf("type must be string or array of strings")
}

// Document is a complete schema document: a root schema plus the dialect URI.
type Document struct {
	SchemaURI string
	Root      Schema
}

// NewDocument wraps root in a document using the default dialect.
func NewDocument(root Schema) Document {
	return Document{SchemaURI: URL, Root: root}
}

// MarshalJSON writes the root schema with a leading "$schema" keyword.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Root == nil {
		return nil, fmt.Errorf("document has no root schema")
	}
	return encode(d.Root, d.SchemaURI, "")
}

// UnmarshalJSON reads a document written by MarshalJSON.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireSchema
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	root, err := decode(&w)
	if err != nil {
		return err
	}
	d.SchemaURI = w.Schema
	d.Root = root
	return nil
}

// Indent renders a document as indented JSON followed by a newline.
func Indent(d Document) ([]byte, error) {
	if d.Root == nil {
		return nil, fmt.Errorf("document has no root schema")
	}
	out, err := encode(d.Root, d.SchemaURI, "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func (s *NullSchema) MarshalJSON() ([]byte, error)    { return encode(s, "", "") }
func (s *BooleanSchema) MarshalJSON() ([]byte, error) { return encode(s, "", "") }
func (s *IntegerSchema) MarshalJSON() ([]byte, error) { return encode(s, "", "") }
func (s *NumberSchema) MarshalJSON() ([]byte, error)  { return encode(s, "", "") }
func (s *StringSchema) MarshalJSON() ([]byte, error)  { return encode(s, "", "") }
func (s *ObjectSchema) MarshalJSON() ([]byte, error)  { return encode(s, "", "") }
func (s *ArraySchema) MarshalJSON() ([]byte, error)   { return encode(s, "", "") }
func (s *UnionSchema) MarshalJSON() ([]byte, error)   { return encode(s, "", "") }
func (s *AnySchema) MarshalJSON() ([]byte, error)     { return encode(s, "", "") }

// wireSchema is the decoding shape of every variant. Nested schemas decode in
// the same pass as their parent.
type wireSchema struct {
	Schema      string                 `json:"$schema,omitempty"`
	Type        SchemaType             `json:"type,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*wireSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *wireSchema            `json:"items,omitempty"`
	MinItems    *int                   `json:"minItems,omitempty"`
	MaxItems    *int                   `json:"maxItems,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	MaxLength   *int                   `json:"maxLength,omitempty"`
	Pattern     string                 `json:"pattern,omitempty"`
	Format      string                 `json:"format,omitempty"`
	Minimum     *json.Number           `json:"minimum,omitempty"`
	Maximum     *json.Number           `json:"maximum,omitempty"`
	Enum        []json.RawMessage      `json:"enum,omitempty"`
	Examples    []json.RawMessage      `json:"examples,omitempty"`
	AnyOf       []*wireSchema          `json:"anyOf,omitempty"`
}

// DecodeError reports where in a schema document decoding failed.
type DecodeError struct {
	// Path holds the keywords and keys from the root down, e.g.
	// ["properties", "user", "items"].
	Path []string
	Err  error
}

func (e *DecodeError) Error() string {
	path := e.Path
	if len(path) > 16 {
		path = slices.Concat(path[:8], []string{"..."}, path[len(path)-8:])
	}
	return fmt.Sprintf("at #/%s: %v", strings.Join(path, "/"), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func failAt(path []string, err error) error {
	return &DecodeError{Path: slices.Clone(path), Err: err}
}

// ParseFile reads and parses a schema document from a file
func ParseFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	return ParseBytes(data)
}

// ParseBytes parses a schema document from bytes
func ParseBytes(data []byte) (Schema, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON Schema: %w", err)
	}
	return doc.Root, nil
}

// ParseString parses a schema document from a string
func ParseString(s string) (Schema, error) {
	return ParseBytes([]byte(s))
}

// decode builds the schema for w. path locates w in the document; it is only
// copied when decoding fails.
func decode(w *wireSchema) (Schema, error) {
	return decodeAt(w, nil)
}

func decodeAt(w *wireSchema, path []string) (Schema, error) {
	if w == nil {
		return nil, failAt(path, fmt.Errorf("schema must be an object"))
	}
	md := Metadata{Title: w.Title, Description: w.Description}

	if len(w.AnyOf) > 0 {
		alternatives := make([]Schema, 0, len(w.AnyOf))
		for i, raw := range w.AnyOf {
			alt, err := decodeAt(raw, append(path, "anyOf", strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			alternatives = append(alternatives, alt)
		}
		s, err := decodedUnion(alternatives, md)
		if err != nil {
			return nil, failAt(append(path, "anyOf"), err)
		}
		return s, nil
	}

	switch len(w.Type.Types) {
	case 0:
		// Infer type from properties, the way hand-written schemas often omit it
		if len(w.Properties) > 0 {
			return decodeVariant(TypeObject, w, md, path)
		}
		if w.Items != nil {
			return decodeVariant(TypeArray, w, md, path)
		}
		return &AnySchema{Metadata: md}, nil
	case 1:
		return decodeVariant(Type(w.Type.Primary()), w, md, path)
	default:
		alternatives := make([]Schema, 0, len(w.Type.Types))
		for _, t := range w.Type.Types {
			alt, err := decodeVariant(Type(t), w, Metadata{}, path)
			if err != nil {
				return nil, err
			}
			alternatives = append(alternatives, alt)
		}
		s, err := decodedUnion(alternatives, md)
		if err != nil {
			return nil, failAt(append(path, "type"), err)
		}
		return s, nil
	}
}

// decodedUnion shapes decoded alternatives the way merging shapes unions:
// nested unions are flattened, Any absorbs the rest, each family appears at
// most once and a single remaining alternative stands on its own, keeping
// the union's title and description where it has none.
func decodedUnion(alternatives []Schema, md Metadata) (Schema, error) {
	var flat []Schema
	for _, alt := range alternatives {
		if u, ok := alt.(*UnionSchema); ok {
			flat = append(flat, u.AnyOf...)
			continue
		}
		flat = append(flat, alt)
	}

	seen := make(map[Family]bool, len(flat))
	for _, alt := range flat {
		f := FamilyOf(alt)
		if f == FamilyAny {
			return &AnySchema{Metadata: md}, nil
		}
		if seen[f] {
			return nil, fmt.Errorf("more than one %s alternative", familyName(alt))
		}
		seen[f] = true
	}

	if len(flat) == 1 {
		alt := flat[0]
		own := *alt.Meta()
		if own.Title == "" {
			own.Title = md.Title
		}
		if own.Description == "" {
			own.Description = md.Description
		}
		return WithMetadata(alt, own), nil
	}
	u := NewUnionSchema(flat)
	u.Metadata = md
	return u, nil
}

func familyName(s Schema) string {
	if FamilyOf(s) == FamilyNumeric {
		return "numeric"
	}
	return string(s.Type())
}

// Primary returns the primary (first) type, or empty string if none
func (st SchemaType) Primary() string {
	if len(st.Types) > 0 {
		return st.Types[0]
	}
	return ""
}

func decodeVariant(t Type, w *wireSchema, md Metadata, path []string) (Schema, error) {
	switch t {
	case TypeNull:
		return &NullSchema{Metadata: md}, nil
	case TypeBoolean:
		s := &BooleanSchema{Metadata: md}
		for _, raw := range w.Enum {
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, failAt(path, fmt.Errorf("boolean enum: %w", err))
			}
			s.Enum = append(s.Enum, b)
		}
		return s, nil
	case TypeInteger:
		s := &IntegerSchema{Metadata: md}
		var err error
		if s.Minimum, err = intBound(w.Minimum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Maximum, err = intBound(w.Maximum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Enum, err = intList(w.Enum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Examples, err = intList(w.Examples); err != nil {
			return nil, failAt(path, err)
		}
		return s, nil
	case TypeNumber:
		s := &NumberSchema{Metadata: md}
		var err error
		if s.Minimum, err = floatBound(w.Minimum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Maximum, err = floatBound(w.Maximum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Enum, err = floatList(w.Enum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Examples, err = floatList(w.Examples); err != nil {
			return nil, failAt(path, err)
		}
		return s, nil
	case TypeString:
		s := &StringSchema{
			Metadata:  md,
			MinLength: w.MinLength,
			MaxLength: w.MaxLength,
			Pattern:   w.Pattern,
			Format:    w.Format,
		}
		var err error
		if s.Enum, err = stringList(w.Enum); err != nil {
			return nil, failAt(path, err)
		}
		if s.Examples, err = stringList(w.Examples); err != nil {
			return nil, failAt(path, err)
		}
		return s, nil
	case TypeObject:
		properties := make(map[string]Schema, len(w.Properties))
		for key, raw := range w.Properties {
			prop, err := decodeAt(raw, append(path, "properties", key))
			if err != nil {
				return nil, err
			}
			properties[key] = prop
		}
		s := NewObjectSchema(properties, w.Required)
		s.Metadata = md
		return s, nil
	case TypeArray:
		s := &ArraySchema{Metadata: md, MinItems: w.MinItems, MaxItems: w.MaxItems}
		if w.Items != nil {
			items, err := decodeAt(w.Items, append(path, "items"))
			if err != nil {
				return nil, err
			}
			s.Items = items
		}
		return s, nil
	default:
		return nil, failAt(path, fmt.Errorf("unknown schema type %q", t))
	}
}

func intBound(n *json.Number) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("integer bound %s: %w", n.String(), err)
	}
	return &v, nil
}

func floatBound(n *json.Number) (*float64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("number bound %s: %w", n.String(), err)
	}
	return &v, nil
}

func intList(raws []json.RawMessage) ([]int64, error) {
	var out []int64
	for _, raw := range raws {
		v, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer value %s: %w", raw, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func floatList(raws []json.RawMessage) ([]float64, error) {
	var out []float64
	for _, raw := range raws {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("number value %s: %w", raw, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func stringList(raws []json.RawMessage) ([]string, error) {
	var out []string
	for _, raw := range raws {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("string value %s: %w", raw, err)
		}
		out = append(out, v)
	}
	return out, nil
}
