package schema

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{
			name:  "valid simple schema",
			input: `{"type": "object"}`,
			want:  TypeObject,
		},
		{
			name:  "valid schema with properties",
			input: `{"type": "object", "properties": {"name": {"type": "string"}}}`,
			want:  TypeObject,
		},
		{
			name:  "properties without type",
			input: `{"properties": {"name": {"type": "string"}}}`,
			want:  TypeObject,
		},
		{
			name:  "items without type",
			input: `{"items": {"type": "integer"}}`,
			want:  TypeArray,
		},
		{
			name:  "type array",
			input: `{"type": ["string", "null"]}`,
			want:  TypeUnion,
		},
		{
			name:    "invalid JSON",
			input:   `{invalid}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			input:   `{"type": "tuple"}`,
			wantErr: true,
		},
		{
			name:    "fractional integer bound",
			input:   `{"type": "integer", "minimum": 1.5}`,
			wantErr: true,
		},
		{
			name:  "empty object",
			input: `{}`,
			want:  TypeAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := ParseString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, schema)
			assert.Equal(t, tt.want, schema.Type())
		})
	}
}

func TestMarshal_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		want   string
	}{
		{
			name:   "null",
			schema: &NullSchema{},
			want:   `{"type":"null"}`,
		},
		{
			name:   "boolean with enum",
			schema: &BooleanSchema{Enum: []bool{false, true}},
			want:   `{"type":"boolean","enum":[false,true]}`,
		},
		{
			name:   "integer bounds",
			schema: &IntegerSchema{Minimum: int64Ptr(-3), Maximum: int64Ptr(5)},
			want:   `{"type":"integer","minimum":-3,"maximum":5}`,
		},
		{
			name:   "number with examples",
			schema: &NumberSchema{Minimum: float64Ptr(0.5), Examples: []float64{0.5, 2}},
			want:   `{"type":"number","minimum":0.5,"examples":[0.5,2]}`,
		},
		{
			name:   "string lengths use camelCase",
			schema: &StringSchema{Metadata: Metadata{Title: "Name"}, MinLength: intPtr(1), MaxLength: intPtr(3), Format: "email"},
			want:   `{"type":"string","title":"Name","minLength":1,"maxLength":3,"format":"email"}`,
		},
		{
			name:   "empty object keeps properties",
			schema: NewObjectSchema(nil, nil),
			want:   `{"type":"object","properties":{}}`,
		},
		{
			name:   "array without items",
			schema: &ArraySchema{MinItems: intPtr(0), MaxItems: intPtr(0)},
			want:   `{"type":"array","minItems":0,"maxItems":0}`,
		},
		{
			name:   "union",
			schema: NewUnionSchema([]Schema{&StringSchema{}, &NullSchema{}}),
			want:   `{"anyOf":[{"type":"null"},{"type":"string"}]}`,
		},
		{
			name:   "any",
			schema: &AnySchema{Metadata: Metadata{Description: "anything"}},
			want:   `{"description":"anything"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.schema)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDocument_MarshalJSON(t *testing.T) {
	doc := NewDocument(NewObjectSchema(map[string]Schema{
		"name": &StringSchema{},
	}, []string{"name"}))

	got, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`, string(got))

	_, err = json.Marshal(Document{})
	assert.Error(t, err)
}

func TestIndent(t *testing.T) {
	out, err := Indent(NewDocument(&NullSchema{}))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"$schema\": \"http://json-schema.org/draft-07/schema#\",\n  \"type\": \"null\"\n}\n", string(out))
}

func TestRoundTrip(t *testing.T) {
	original := NewObjectSchema(map[string]Schema{
		"id":      &IntegerSchema{Minimum: int64Ptr(1), Maximum: int64Ptr(99), Enum: []int64{1, 99}},
		"score":   &NumberSchema{Maximum: float64Ptr(9.5)},
		"name":    &StringSchema{MinLength: intPtr(2), Pattern: "^[A-Z]", Examples: []string{"Ada"}},
		"flags":   &ArraySchema{Items: &BooleanSchema{Enum: []bool{true}}, MinItems: intPtr(1)},
		"nothing": &ArraySchema{},
		"nested": NewObjectSchema(map[string]Schema{
			"maybe": NewUnionSchema([]Schema{&NullSchema{}, &StringSchema{Format: "date"}}),
			"free":  &AnySchema{Metadata: Metadata{Title: "Free"}},
		}, []string{"free"}),
	}, []string{"name", "id"})
	original.Metadata = Metadata{Title: "Record", Description: "A record"}

	data, err := json.Marshal(NewDocument(original))
	require.NoError(t, err)

	decoded, err := ParseBytes(data)
	require.NoError(t, err)
	if diff := cmp.Diff(Schema(original), decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, Equal(original, decoded))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": ["integer", "null"], "title": "Count"}`), 0o644))

	s, err := ParseFile(path)
	require.NoError(t, err)

	want := NewUnionSchema([]Schema{&IntegerSchema{}, &NullSchema{}})
	want.Metadata = Metadata{Title: "Count"}
	if diff := cmp.Diff(Schema(want), s); diff != "" {
		t.Errorf("ParseFile() mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// nestObjects wraps leaf in depth single-property objects.
func nestObjects(depth int, leaf Schema) Schema {
	s := leaf
	for i := 0; i < depth; i++ {
		s = NewObjectSchema(map[string]Schema{"k": s}, []string{"k"})
	}
	return s
}

func TestMarshal_DeepSchema(t *testing.T) {
	// Each object level nests two JSON levels, past the decoder's limit
	deep := nestObjects(6000, &StringSchema{})

	data, err := NewDocument(deep).MarshalJSON()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","properties":{"k":{"type":"object"`))
	assert.True(t, strings.HasSuffix(string(data), `{"type":"string"}`+strings.Repeat(`},"required":["k"]}`, 6000)))

	out, err := Indent(NewDocument(nestObjects(500, &NullSchema{})))
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, "object", v["type"])
}

func TestMarshal_ErrorIsNotWrappedPerLevel(t *testing.T) {
	deep := nestObjects(3000, &NumberSchema{Minimum: float64Ptr(math.NaN())})

	_, err := NewDocument(deep).MarshalJSON()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value")
	assert.Less(t, len(err.Error()), 100)

	_, err = Indent(NewDocument(deep))
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 100)
}

func TestRoundTrip_DeepSchema(t *testing.T) {
	original := nestObjects(3000, &IntegerSchema{Minimum: int64Ptr(1)})

	data, err := NewDocument(original).MarshalJSON()
	require.NoError(t, err)

	decoded, err := ParseBytes(data)
	require.NoError(t, err)
	assert.True(t, Equal(original, decoded))
}

func TestParseString_DecodeErrorPath(t *testing.T) {
	_, err := ParseString(`{"properties": {"a": {"items": {"type": "tuple"}}}}`)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"properties", "a", "items"}, de.Path)
	assert.Contains(t, err.Error(), `at #/properties/a/items: unknown schema type "tuple"`)

	deep := strings.Repeat(`{"type":"object","properties":{"k":`, 3000) + `{"type":"tuple"}` + strings.Repeat("}}", 3000)
	_, err = ParseString(deep)
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Path, 6000)
	assert.Contains(t, err.Error(), "/.../")
	assert.Less(t, len(err.Error()), 200)
}

func TestParseString_NormalizesUnions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Schema
		wantErr string
	}{
		{
			name:  "single alternative stands alone",
			input: `{"title": "T", "description": "D", "anyOf": [{"type": "string", "title": "S"}]}`,
			want:  &StringSchema{Metadata: Metadata{Title: "S", Description: "D"}},
		},
		{
			name:  "nested anyOf is flattened",
			input: `{"anyOf": [{"anyOf": [{"type": "string"}, {"type": "null"}]}, {"type": "integer"}]}`,
			want:  NewUnionSchema([]Schema{&NullSchema{}, &IntegerSchema{}, &StringSchema{}}),
		},
		{
			name:  "any absorbs the other alternatives",
			input: `{"title": "T", "anyOf": [{"type": "string"}, {}]}`,
			want:  &AnySchema{Metadata: Metadata{Title: "T"}},
		},
		{
			name:    "two numeric alternatives",
			input:   `{"anyOf": [{"type": "integer"}, {"type": "number"}]}`,
			wantErr: "at #/anyOf: more than one numeric alternative",
		},
		{
			name:    "repeated type",
			input:   `{"type": ["string", "string"]}`,
			wantErr: "more than one string alternative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseString() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewObjectSchema_NormalizesRequired(t *testing.T) {
	o := NewObjectSchema(map[string]Schema{"a": &NullSchema{}, "b": &NullSchema{}}, []string{"b", "a", "b"})
	assert.Equal(t, []string{"a", "b"}, o.Required)
	assert.True(t, o.IsRequired("a"))
	assert.False(t, o.IsRequired("c"))
	assert.Equal(t, []string{"a", "b"}, o.Keys())

	empty := NewObjectSchema(nil, []string{})
	assert.NotNil(t, empty.Properties)
	assert.Nil(t, empty.Required)
}

func TestNewUnionSchema_OrdersByFamily(t *testing.T) {
	alternatives := []Schema{
		NewObjectSchema(nil, nil),
		&StringSchema{},
		&NumberSchema{},
		&NullSchema{},
	}
	u := NewUnionSchema(alternatives)

	var families []Family
	for _, alt := range u.AnyOf {
		families = append(families, FamilyOf(alt))
	}
	assert.Equal(t, []Family{FamilyNull, FamilyNumeric, FamilyString, FamilyObject}, families)

	// The input slice is not reordered
	assert.IsType(t, &ObjectSchema{}, alternatives[0])
}

func TestWithMetadata(t *testing.T) {
	original := &IntegerSchema{Minimum: int64Ptr(3)}
	titled := WithMetadata(original, Metadata{Title: "Count"})

	assert.Equal(t, "Count", titled.Meta().Title)
	assert.Empty(t, original.Title)
	assert.Equal(t, int64(3), *titled.(*IntegerSchema).Minimum)
}

func TestDescribe(t *testing.T) {
	original := NewObjectSchema(map[string]Schema{
		"user_id":  &StringSchema{},
		"owner_id": &StringSchema{
			Metadata: Metadata{Description: "Kept"},
		},
		"items": &ArraySchema{Items: NewObjectSchema(map[string]Schema{
			"sku_id": &StringSchema{},
		}, nil)},
		"ref": NewUnionSchema([]Schema{&NullSchema{}, NewObjectSchema(map[string]Schema{
			"target_id": &IntegerSchema{},
		}, nil)}),
		"count": &IntegerSchema{},
	}, nil)

	describe := func(name string) (string, bool) {
		if len(name) > 3 && name[len(name)-3:] == "_id" {
			return "Identifier", true
		}
		return "", false
	}

	described := Describe(original, describe).(*ObjectSchema)

	assert.Equal(t, "Identifier", described.Properties["user_id"].Meta().Description)
	assert.Equal(t, "Kept", described.Properties["owner_id"].Meta().Description)
	assert.Empty(t, described.Properties["count"].Meta().Description)

	items := described.Properties["items"].(*ArraySchema).Items.(*ObjectSchema)
	assert.Equal(t, "Identifier", items.Properties["sku_id"].Meta().Description)

	ref := described.Properties["ref"].(*UnionSchema)
	target := ref.AnyOf[1].(*ObjectSchema).Properties["target_id"]
	assert.Equal(t, "Identifier", target.Meta().Description)

	// The input is left untouched
	assert.Empty(t, original.Properties["user_id"].Meta().Description)
	assert.Nil(t, Describe(nil, describe))
}

func TestSchemaType_UnmarshalJSON(t *testing.T) {
	var st SchemaType
	require.NoError(t, json.Unmarshal([]byte(`"string"`), &st))
	assert.Equal(t, []string{"string"}, st.Types)
	assert.Equal(t, "string", st.Primary())

	require.NoError(t, json.Unmarshal([]byte(`["number", "null"]`), &st))
	assert.Equal(t, []string{"number", "null"}, st.Types)

	assert.Error(t, json.Unmarshal([]byte(`42`), &st))
	assert.Equal(t, "", SchemaType{}.Primary())
}
