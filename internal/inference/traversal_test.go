package inference

import (
	"encoding/json"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/schemagen/internal/errors"
	"github.com/mcncl/schemagen/internal/models"
	"github.com/mcncl/schemagen/internal/schema"
)

func TestDerive_Examples(t *testing.T) {
	tests := []struct {
		name  string
		value models.JSONValue
		want  schema.Schema
	}{
		{
			name:  "flat object",
			value: models.JSONObject{"foo": json.Number("1"), "bar": "x"},
			want: schema.NewObjectSchema(map[string]schema.Schema{
				"foo": &schema.IntegerSchema{},
				"bar": &schema.StringSchema{},
			}, []string{"bar", "foo"}),
		},
		{
			name:  "nested object",
			value: models.JSONObject{"a": models.JSONObject{"b": true}},
			want: schema.NewObjectSchema(map[string]schema.Schema{
				"a": schema.NewObjectSchema(map[string]schema.Schema{
					"b": &schema.BooleanSchema{},
				}, []string{"b"}),
			}, []string{"a"}),
		},
		{
			name:  "null root",
			value: nil,
			want:  &schema.NullSchema{},
		},
		{
			name:  "empty object",
			value: models.JSONObject{},
			want:  schema.NewObjectSchema(nil, nil),
		},
		{
			name:  "empty array",
			value: models.JSONArray{},
			want:  &schema.ArraySchema{},
		},
		{
			name:  "homogeneous array",
			value: models.JSONArray{json.Number("1"), json.Number("2")},
			want:  &schema.ArraySchema{Items: &schema.IntegerSchema{}},
		},
		{
			name:  "mixed array",
			value: models.JSONArray{json.Number("1"), "x", nil},
			want: &schema.ArraySchema{Items: schema.NewUnionSchema([]schema.Schema{
				&schema.NullSchema{},
				&schema.IntegerSchema{},
				&schema.StringSchema{},
			})},
		},
		{
			name: "array of objects",
			value: models.JSONArray{
				models.JSONObject{"id": json.Number("1"), "tag": "a"},
				models.JSONObject{"id": json.Number("2.5")},
			},
			want: &schema.ArraySchema{Items: schema.NewObjectSchema(map[string]schema.Schema{
				"id":  &schema.NumberSchema{},
				"tag": &schema.StringSchema{},
			}, []string{"id"})},
		},
		{
			name:  "decoded without the parser",
			value: map[string]interface{}{"list": []interface{}{"a", map[string]interface{}{}}},
			want: schema.NewObjectSchema(map[string]schema.Schema{
				"list": &schema.ArraySchema{Items: schema.NewUnionSchema([]schema.Schema{
					&schema.StringSchema{},
					schema.NewObjectSchema(nil, nil),
				})},
			}, []string{"list"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.value)
			require.NoError(t, err)
			assertSameSchema(t, tt.want, got)
		})
	}
}

func TestDerive_PropertiesMatchKeys(t *testing.T) {
	value := models.JSONObject{
		"id":      json.Number("7"),
		"name":    "Ada",
		"active":  true,
		"deleted": nil,
		"tags":    models.JSONArray{"x"},
		"address": models.JSONObject{"city": "London"},
	}

	got, err := Derive(value)
	require.NoError(t, err)
	obj := got.(*schema.ObjectSchema)

	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, keys, obj.Keys())
	assert.Equal(t, keys, obj.Required)
}

func TestDerive_DeepNesting(t *testing.T) {
	const depth = 10000

	var value models.JSONValue = json.Number("1")
	for i := 0; i < depth; i++ {
		if i%2 == 0 {
			value = models.JSONObject{"child": value}
		} else {
			value = models.JSONArray{value}
		}
	}

	got, err := Derive(value)
	require.NoError(t, err)

	levels := 0
	current := got
	for {
		switch s := current.(type) {
		case *schema.ObjectSchema:
			current = s.Properties["child"]
		case *schema.ArraySchema:
			current = s.Items
		default:
			assert.IsType(t, &schema.IntegerSchema{}, current)
			assert.Equal(t, depth, levels)
			return
		}
		levels++
	}
}

func TestDeriveWithOptions_RecordsObservations(t *testing.T) {
	value := models.JSONArray{json.Number("1"), json.Number("2.5"), json.Number("-4")}

	got, err := DeriveWithOptions(value, Options{RecordBounds: true, RecordEnums: true, MaxEnum: 5})
	require.NoError(t, err)

	want := &schema.ArraySchema{
		Items: &schema.NumberSchema{
			Minimum: float64Ptr(-4),
			Maximum: float64Ptr(2.5),
			Enum:    []float64{-4, 1, 2.5},
		},
		MinItems: intPtr(3),
		MaxItems: intPtr(3),
	}
	assertSameSchema(t, want, got)
}

func TestDeriveWithOptions_AnyPolicy(t *testing.T) {
	got, err := DeriveWithOptions(models.JSONArray{"x", json.Number("1")}, Options{Policy: PolicyAny})
	require.NoError(t, err)
	assertSameSchema(t, &schema.ArraySchema{Items: &schema.AnySchema{}}, got)
}

func TestDerive_Unsupported(t *testing.T) {
	tests := []struct {
		name  string
		value models.JSONValue
	}{
		{"root", struct{}{}},
		{"object attribute", models.JSONObject{"ok": "x", "bad": make(chan int)}},
		{"nested element", models.JSONObject{"list": models.JSONArray{json.Number("1"), math.Inf(-1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.value)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.IsUnsupported(err))
		})
	}
}

func TestBuilder_ReleasesWorkList(t *testing.T) {
	b := newBuilder(Options{})

	_, err := b.derive(json.Number("3"))
	require.NoError(t, err)
	assert.Nil(t, b.frontier, "primitive roots never allocate a work list")

	_, err = b.derive(models.JSONObject{"a": models.JSONArray{models.JSONObject{}}})
	require.NoError(t, err)
	assert.Nil(t, b.frontier)

	_, err = b.derive(models.JSONObject{"a": models.JSONObject{"b": struct{}{}}})
	require.Error(t, err)
	assert.Nil(t, b.frontier)
}

func TestBuilder_AttachInvariants(t *testing.T) {
	b := newBuilder(Options{})
	b.frontier = []node{
		{parent: noParent, source: models.JSONObject{}},
		{parent: 0, source: models.JSONArray{}, visited: true, isArray: true, elements: make([]schema.Schema, 1)},
	}

	assert.Panics(t, func() { b.attach(5, relation{kind: relationAttribute, key: "a"}, &schema.NullSchema{}) })
	assert.Panics(t, func() { b.attach(0, relation{kind: relationAttribute, key: "a"}, &schema.NullSchema{}) }, "unvisited parent")
	assert.Panics(t, func() { b.attach(1, relation{kind: relationAttribute, key: "a"}, &schema.NullSchema{}) }, "attribute on array")
	assert.Panics(t, func() { b.attach(1, relation{kind: relationElement, index: 3}, &schema.NullSchema{}) }, "index out of range")
	assert.Panics(t, func() { b.attach(1, relation{kind: relationRoot}, &schema.NullSchema{}) }, "root relation")

	assert.NotPanics(t, func() { b.attach(1, relation{kind: relationElement, index: 0}, &schema.NullSchema{}) })
}

func TestRecoverInvariant(t *testing.T) {
	run := func(panicValue any) (err error) {
		defer recoverInvariant(&err)
		if panicValue != nil {
			panic(panicValue)
		}
		return nil
	}

	assert.NoError(t, run(nil))

	err := run(invariant("node %d lost", 3))
	require.Error(t, err)
	assert.True(t, errors.IsInvariantViolation(err))
	assert.Contains(t, err.Error(), "node 3 lost")

	assert.PanicsWithValue(t, "boom", func() { _ = run("boom") }, "foreign panics are re-raised")
}
