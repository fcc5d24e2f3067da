package inference

import (
	"cmp"
	"slices"

	"github.com/mcncl/schemagen/internal/schema"
)

// Merger combines two schemas describing the same position into the least
// schema accepting the values of both. Every rule is a pointwise min, max,
// union or intersection, so Merge is commutative and associative and the
// order in which documents are folded in does not matter.
type Merger struct {
	// Policy decides what heterogeneous schemas merge into.
	Policy Policy
	// MaxEnum drops enumerations that grow past this size (<= 0: no cap).
	MaxEnum int
	// MaxExamples keeps only the smallest examples (<= 0: no cap).
	MaxExamples int
}

// Merge combines a and b with the default union policy.
func Merge(a, b schema.Schema) schema.Schema {
	return (&Merger{}).Merge(a, b)
}

// Unify combines a and b when they belong to the same type family. It
// reports false when they do not, leaving the heterogeneous policy to the
// caller.
func Unify(a, b schema.Schema) (schema.Schema, bool) {
	return (&Merger{}).Unify(a, b)
}

// Merge returns the least schema accepting both a and b. A nil schema means
// nothing has been observed and is the identity.
func (m *Merger) Merge(a, b schema.Schema) schema.Schema {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if s, ok := m.Unify(a, b); ok {
		return s
	}
	if m.Policy == PolicyAny {
		return &schema.AnySchema{Metadata: mergeMetadata(a.Meta(), b.Meta())}
	}
	return m.union(a, b)
}

// Unify merges schemas of one family. Unions never unify; AnySchema unifies
// with everything.
func (m *Merger) Unify(a, b schema.Schema) (schema.Schema, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	fa, fb := schema.FamilyOf(a), schema.FamilyOf(b)
	if fa == schema.FamilyAny || fb == schema.FamilyAny {
		return &schema.AnySchema{Metadata: mergeMetadata(a.Meta(), b.Meta())}, true
	}
	if fa != fb || fa == schema.FamilyUnion {
		return nil, false
	}

	switch x := a.(type) {
	case *schema.NullSchema:
		return &schema.NullSchema{Metadata: mergeMetadata(a.Meta(), b.Meta())}, true
	case *schema.BooleanSchema:
		return m.mergeBoolean(x, b.(*schema.BooleanSchema)), true
	case *schema.IntegerSchema:
		switch y := b.(type) {
		case *schema.IntegerSchema:
			return m.mergeInteger(x, y), true
		case *schema.NumberSchema:
			return m.mergeNumber(toNumber(x), y), true
		}
	case *schema.NumberSchema:
		switch y := b.(type) {
		case *schema.IntegerSchema:
			return m.mergeNumber(x, toNumber(y)), true
		case *schema.NumberSchema:
			return m.mergeNumber(x, y), true
		}
	case *schema.StringSchema:
		return m.mergeString(x, b.(*schema.StringSchema)), true
	case *schema.ObjectSchema:
		return m.mergeObject(x, b.(*schema.ObjectSchema)), true
	case *schema.ArraySchema:
		return m.mergeArray(x, b.(*schema.ArraySchema)), true
	}
	panic(invariant("no unification rule for %s and %s", a.Type(), b.Type()))
}

// union folds a and b into an anyOf holding one alternative per family.
func (m *Merger) union(a, b schema.Schema) schema.Schema {
	var md schema.Metadata
	groups := make(map[schema.Family]schema.Schema)
	for _, side := range []schema.Schema{a, b} {
		alternatives := []schema.Schema{side}
		if u, ok := side.(*schema.UnionSchema); ok {
			md = mergeMetadata(&md, &u.Metadata)
			alternatives = u.AnyOf
		}
		for _, alt := range alternatives {
			family := schema.FamilyOf(alt)
			if family == schema.FamilyAny {
				return &schema.AnySchema{Metadata: mergeMetadata(a.Meta(), b.Meta())}
			}
			if family == schema.FamilyUnion {
				panic(invariant("union nested inside union"))
			}
			if prev, ok := groups[family]; ok {
				merged, _ := m.Unify(prev, alt)
				groups[family] = merged
				continue
			}
			groups[family] = alt
		}
	}

	alternatives := make([]schema.Schema, 0, len(groups))
	for _, alt := range groups {
		alternatives = append(alternatives, alt)
	}
	if len(alternatives) == 1 {
		return alternatives[0]
	}
	u := schema.NewUnionSchema(alternatives)
	u.Metadata = md
	return u
}

func (m *Merger) mergeBoolean(a, b *schema.BooleanSchema) *schema.BooleanSchema {
	out := &schema.BooleanSchema{Metadata: mergeMetadata(&a.Metadata, &b.Metadata)}
	if a.Enum != nil && b.Enum != nil {
		var seenFalse, seenTrue bool
		for _, v := range slices.Concat(a.Enum, b.Enum) {
			if v {
				seenTrue = true
			} else {
				seenFalse = true
			}
		}
		if seenFalse {
			out.Enum = append(out.Enum, false)
		}
		if seenTrue {
			out.Enum = append(out.Enum, true)
		}
		if m.MaxEnum > 0 && len(out.Enum) > m.MaxEnum {
			out.Enum = nil
		}
	}
	return out
}

func (m *Merger) mergeInteger(a, b *schema.IntegerSchema) *schema.IntegerSchema {
	return &schema.IntegerSchema{
		Metadata: mergeMetadata(&a.Metadata, &b.Metadata),
		Minimum:  widen(a.Minimum, b.Minimum, lower[int64]),
		Maximum:  widen(a.Maximum, b.Maximum, upper[int64]),
		Enum:     mergeEnum(a.Enum, b.Enum, m.MaxEnum),
		Examples: mergeExamples(a.Examples, b.Examples, m.MaxExamples),
	}
}

func (m *Merger) mergeNumber(a, b *schema.NumberSchema) *schema.NumberSchema {
	return &schema.NumberSchema{
		Metadata: mergeMetadata(&a.Metadata, &b.Metadata),
		Minimum:  widen(a.Minimum, b.Minimum, lower[float64]),
		Maximum:  widen(a.Maximum, b.Maximum, upper[float64]),
		Enum:     mergeEnum(a.Enum, b.Enum, m.MaxEnum),
		Examples: mergeExamples(a.Examples, b.Examples, m.MaxExamples),
	}
}

func (m *Merger) mergeString(a, b *schema.StringSchema) *schema.StringSchema {
	return &schema.StringSchema{
		Metadata:  mergeMetadata(&a.Metadata, &b.Metadata),
		MinLength: widen(a.MinLength, b.MinLength, lower[int]),
		MaxLength: widen(a.MaxLength, b.MaxLength, upper[int]),
		Pattern:   keepIfEqual(a.Pattern, b.Pattern),
		Format:    keepIfEqual(a.Format, b.Format),
		Enum:      mergeEnum(a.Enum, b.Enum, m.MaxEnum),
		Examples:  mergeExamples(a.Examples, b.Examples, m.MaxExamples),
	}
}

// mergeObject unions the property sets and intersects the required sets.
func (m *Merger) mergeObject(a, b *schema.ObjectSchema) *schema.ObjectSchema {
	properties := make(map[string]schema.Schema, max(len(a.Properties), len(b.Properties)))
	for key, prop := range a.Properties {
		properties[key] = prop
	}
	for key, prop := range b.Properties {
		if prev, ok := properties[key]; ok {
			properties[key] = m.Merge(prev, prop)
			continue
		}
		properties[key] = prop
	}

	var required []string
	for _, key := range a.Required {
		if b.IsRequired(key) {
			required = append(required, key)
		}
	}

	out := schema.NewObjectSchema(properties, required)
	out.Metadata = mergeMetadata(&a.Metadata, &b.Metadata)
	return out
}

func (m *Merger) mergeArray(a, b *schema.ArraySchema) *schema.ArraySchema {
	return &schema.ArraySchema{
		Metadata: mergeMetadata(&a.Metadata, &b.Metadata),
		Items:    m.Merge(a.Items, b.Items),
		MinItems: widen(a.MinItems, b.MinItems, lower[int]),
		MaxItems: widen(a.MaxItems, b.MaxItems, upper[int]),
	}
}

// toNumber widens an integer schema to the number schema accepting the same
// values.
func toNumber(s *schema.IntegerSchema) *schema.NumberSchema {
	out := &schema.NumberSchema{Metadata: s.Metadata}
	if s.Minimum != nil {
		v := float64(*s.Minimum)
		out.Minimum = &v
	}
	if s.Maximum != nil {
		v := float64(*s.Maximum)
		out.Maximum = &v
	}
	out.Enum = toFloats(s.Enum)
	out.Examples = toFloats(s.Examples)
	return out
}

func toFloats(in []int64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// mergeMetadata prefers whichever side has a value. When both do and they
// differ the smaller string wins.
func mergeMetadata(a, b *schema.Metadata) schema.Metadata {
	return schema.Metadata{
		Title:       pickString(a.Title, b.Title),
		Description: pickString(a.Description, b.Description),
	}
}

func pickString(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return min(a, b)
	}
}

func keepIfEqual(a, b string) string {
	if a == b {
		return a
	}
	return ""
}

// widen combines two optional bounds. A missing bound is unbounded and stays
// missing.
func widen[T cmp.Ordered](a, b *T, pick func(x, y T) T) *T {
	if a == nil || b == nil {
		return nil
	}
	v := pick(*a, *b)
	return &v
}

func lower[T cmp.Ordered](x, y T) T { return min(x, y) }

func upper[T cmp.Ordered](x, y T) T { return max(x, y) }

// mergeEnum unions two enumerations. A nil enumeration places no constraint,
// so it absorbs the other side; so does a union larger than limit.
func mergeEnum[T cmp.Ordered](a, b []T, limit int) []T {
	if a == nil || b == nil {
		return nil
	}
	out := sortedSet(a, b)
	if limit > 0 && len(out) > limit {
		return nil
	}
	return out
}

// mergeExamples unions two example lists, keeping the limit smallest values.
func mergeExamples[T cmp.Ordered](a, b []T, limit int) []T {
	out := sortedSet(a, b)
	if len(out) == 0 {
		return nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedSet[T cmp.Ordered](a, b []T) []T {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}
