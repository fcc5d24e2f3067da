package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// encoder writes a whole schema tree into one buffer. Children are written
// in place instead of being marshalled and re-validated per level, so the
// cost is linear in the size of the tree whatever its depth. The first error
// sticks and is returned as is.
type encoder struct {
	buf    bytes.Buffer
	indent string
	depth  int
	err    error
}

// encode writes s with a leading "$schema" keyword when uri is set.
func encode(s Schema, uri, indent string) ([]byte, error) {
	e := &encoder{indent: indent}
	e.schema(s, uri)
	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}

func (e *encoder) newline() {
	if e.indent == "" {
		return
	}
	e.buf.WriteByte('\n')
	for i := 0; i < e.depth; i++ {
		e.buf.WriteString(e.indent)
	}
}

func (e *encoder) value(v any) {
	switch x := v.(type) {
	case int64:
		e.buf.WriteString(strconv.FormatInt(x, 10))
	case int:
		e.buf.WriteString(strconv.Itoa(x))
	case bool:
		e.buf.WriteString(strconv.FormatBool(x))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			if e.err == nil {
				e.err = err
			}
			return
		}
		e.buf.Write(b)
	}
}

// block is one open JSON object or array.
type block struct {
	e     *encoder
	close byte
	n     int
}

func (e *encoder) open(lb, rb byte) *block {
	e.buf.WriteByte(lb)
	e.depth++
	return &block{e: e, close: rb}
}

// elem starts the next member of the block.
func (b *block) elem() {
	if b.n > 0 {
		b.e.buf.WriteByte(',')
	}
	b.n++
	b.e.newline()
}

func (b *block) key(k string) {
	b.elem()
	b.e.value(k)
	b.e.buf.WriteByte(':')
	if b.e.indent != "" {
		b.e.buf.WriteByte(' ')
	}
}

func (b *block) field(k string, v any) {
	b.key(k)
	b.e.value(v)
}

func (b *block) end() {
	b.e.depth--
	if b.n > 0 {
		b.e.newline()
	}
	b.e.buf.WriteByte(b.close)
}

func list[T any](b *block, k string, values []T) {
	if len(values) == 0 {
		return
	}
	b.key(k)
	arr := b.e.open('[', ']')
	for _, v := range values {
		arr.elem()
		arr.e.value(v)
	}
	arr.end()
}

func bound[T int | int64 | float64](b *block, k string, v *T) {
	if v != nil {
		b.field(k, *v)
	}
}

func (e *encoder) schema(s Schema, uri string) {
	if e.err != nil {
		return
	}
	if s == nil {
		e.err = fmt.Errorf("cannot encode a nil schema")
		return
	}
	obj := e.open('{', '}')
	if uri != "" {
		obj.field("$schema", uri)
	}
	if t := s.Type(); t != TypeUnion && t != TypeAny {
		obj.field("type", string(t))
	}
	md := s.Meta()
	if md.Title != "" {
		obj.field("title", md.Title)
	}
	if md.Description != "" {
		obj.field("description", md.Description)
	}

	switch v := s.(type) {
	case *NullSchema, *AnySchema:
	case *BooleanSchema:
		list(obj, "enum", v.Enum)
	case *IntegerSchema:
		bound(obj, "minimum", v.Minimum)
		bound(obj, "maximum", v.Maximum)
		list(obj, "enum", v.Enum)
		list(obj, "examples", v.Examples)
	case *NumberSchema:
		bound(obj, "minimum", v.Minimum)
		bound(obj, "maximum", v.Maximum)
		list(obj, "enum", v.Enum)
		list(obj, "examples", v.Examples)
	case *StringSchema:
		bound(obj, "minLength", v.MinLength)
		bound(obj, "maxLength", v.MaxLength)
		if v.Pattern != "" {
			obj.field("pattern", v.Pattern)
		}
		if v.Format != "" {
			obj.field("format", v.Format)
		}
		list(obj, "enum", v.Enum)
		list(obj, "examples", v.Examples)
	case *ObjectSchema:
		obj.key("properties")
		props := e.open('{', '}')
		for _, k := range v.Keys() {
			props.key(k)
			e.schema(v.Properties[k], "")
		}
		props.end()
		list(obj, "required", v.Required)
	case *ArraySchema:
		if v.Items != nil {
			obj.key("items")
			e.schema(v.Items, "")
		}
		bound(obj, "minItems", v.MinItems)
		bound(obj, "maxItems", v.MaxItems)
	case *UnionSchema:
		obj.key("anyOf")
		alts := e.open('[', ']')
		for _, alt := range v.AnyOf {
			alts.elem()
			e.schema(alt, "")
		}
		alts.end()
	default:
		if e.err == nil {
			e.err = fmt.Errorf("cannot encode schema of type %T", s)
		}
	}
	obj.end()
}
