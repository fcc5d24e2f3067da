// Package schema provides the inferred JSON Schema data model: one variant per
// JSON value kind plus union and "any" schemas produced when observations
// disagree. Schemas are treated as immutable once built; functions that need a
// different schema return a new value.
package schema

import (
	"reflect"
	"sort"
)

// URL is the dialect written to the "$schema" keyword of output documents.
const URL = "http://json-schema.org/draft-07/schema#"

// Type is the JSON Schema type keyword of a schema variant.
type Type string

const (
	TypeNull    Type = "null"
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeString  Type = "string"
	TypeArray   Type = "array"
	TypeObject  Type = "object"

	// TypeUnion and TypeAny are never written as a "type" keyword: unions are
	// encoded as anyOf and Any as the empty schema.
	TypeUnion Type = "union"
	TypeAny   Type = "any"
)

// Family groups types that unify with each other. Integer and number share
// the numeric family.
type Family int

const (
	FamilyNull Family = iota
	FamilyBoolean
	FamilyNumeric
	FamilyString
	FamilyArray
	FamilyObject
	FamilyUnion
	FamilyAny
)

// FamilyOf returns the unification family of s.
func FamilyOf(s Schema) Family {
	switch s.Type() {
	case TypeNull:
		return FamilyNull
	case TypeBoolean:
		return FamilyBoolean
	case TypeInteger, TypeNumber:
		return FamilyNumeric
	case TypeString:
		return FamilyString
	case TypeArray:
		return FamilyArray
	case TypeObject:
		return FamilyObject
	case TypeUnion:
		return FamilyUnion
	default:
		return FamilyAny
	}
}

// Schema is implemented by every schema variant in this package.
type Schema interface {
	Type() Type
	Meta() *Metadata
	sealed()
}

// Metadata is the descriptive part shared by all variants.
type Metadata struct {
	Title       string
	Description string
}

// Meta returns the metadata of the schema embedding m.
func (m *Metadata) Meta() *Metadata { return m }

func (*Metadata) sealed() {}

// NullSchema accepts only null.
type NullSchema struct {
	Metadata
}

// BooleanSchema accepts booleans. A nil Enum places no constraint.
type BooleanSchema struct {
	Metadata
	Enum []bool
}

// IntegerSchema accepts integral numbers. Nil bounds are unbounded.
type IntegerSchema struct {
	Metadata
	Minimum  *int64
	Maximum  *int64
	Enum     []int64
	Examples []int64
}

// NumberSchema accepts any number.
type NumberSchema struct {
	Metadata
	Minimum  *float64
	Maximum  *float64
	Enum     []float64
	Examples []float64
}

// StringSchema accepts strings. Empty Pattern and Format place no constraint.
type StringSchema struct {
	Metadata
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string
	Enum      []string
	Examples  []string
}

// ObjectSchema accepts objects. Properties is never nil; Required is sorted
// and nil when no key is required.
type ObjectSchema struct {
	Metadata
	Properties map[string]Schema
	Required   []string
}

// ArraySchema accepts arrays whose elements all match Items. A nil Items means
// no element has been observed yet.
type ArraySchema struct {
	Metadata
	Items    Schema
	MinItems *int
	MaxItems *int
}

// UnionSchema accepts a value matching any alternative. Alternatives are kept
// one per Family, ordered by Family.
type UnionSchema struct {
	Metadata
	AnyOf []Schema
}

// AnySchema accepts every value.
type AnySchema struct {
	Metadata
}

func (*NullSchema) Type() Type    { return TypeNull }
func (*BooleanSchema) Type() Type { return TypeBoolean }
func (*IntegerSchema) Type() Type { return TypeInteger }
func (*NumberSchema) Type() Type  { return TypeNumber }
func (*StringSchema) Type() Type  { return TypeString }
func (*ObjectSchema) Type() Type  { return TypeObject }
func (*ArraySchema) Type() Type   { return TypeArray }
func (*UnionSchema) Type() Type   { return TypeUnion }
func (*AnySchema) Type() Type     { return TypeAny }

// NewObjectSchema builds an object schema, normalizing properties and the
// required set.
func NewObjectSchema(properties map[string]Schema, required []string) *ObjectSchema {
	if properties == nil {
		properties = make(map[string]Schema)
	}
	return &ObjectSchema{
		Properties: properties,
		Required:   normalizeRequired(required),
	}
}

// NewUnionSchema builds a union from alternatives that are already merged
// per family. It sorts them by family.
func NewUnionSchema(alternatives []Schema) *UnionSchema {
	anyOf := make([]Schema, len(alternatives))
	copy(anyOf, alternatives)
	sort.SliceStable(anyOf, func(i, j int) bool {
		return FamilyOf(anyOf[i]) < FamilyOf(anyOf[j])
	})
	return &UnionSchema{AnyOf: anyOf}
}

// IsRequired reports whether key is in the required set.
func (o *ObjectSchema) IsRequired(key string) bool {
	i := sort.SearchStrings(o.Required, key)
	return i < len(o.Required) && o.Required[i] == key
}

// Keys returns the property names in sorted order.
func (o *ObjectSchema) Keys() []string {
	keys := make([]string, 0, len(o.Properties))
	for k := range o.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeRequired(required []string) []string {
	if len(required) == 0 {
		return nil
	}
	out := make([]string, len(required))
	copy(out, required)
	sort.Strings(out)
	// Drop duplicates in place
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Schema) bool {
	return reflect.DeepEqual(a, b)
}

// WithMetadata returns a shallow copy of s carrying md instead of its own
// metadata. s itself is left untouched.
func WithMetadata(s Schema, md Metadata) Schema {
	switch v := s.(type) {
	case *NullSchema:
		c := *v
		c.Metadata = md
		return &c
	case *BooleanSchema:
		c := *v
		c.Metadata = md
		return &c
	case *IntegerSchema:
		c := *v
		c.Metadata = md
		return &c
	case *NumberSchema:
		c := *v
		c.Metadata = md
		return &c
	case *StringSchema:
		c := *v
		c.Metadata = md
		return &c
	case *ObjectSchema:
		c := *v
		c.Metadata = md
		return &c
	case *ArraySchema:
		c := *v
		c.Metadata = md
		return &c
	case *UnionSchema:
		c := *v
		c.Metadata = md
		return &c
	case *AnySchema:
		c := *v
		c.Metadata = md
		return &c
	default:
		return s
	}
}
