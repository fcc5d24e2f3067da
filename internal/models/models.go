package models

// JSONValue is a generic type to represent any decoded JSON value.
// This can be a string, json.Number, bool, nil, JSONObject, or JSONArray.
// It is an alias so raw encoding/json output can be passed in unchanged.
type JSONValue = interface{}

// JSONObject represents a JSON object, which is a map of strings to JSONValues.
type JSONObject map[string]JSONValue

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray []JSONValue

// IntermediateRepresentation holds one parsed JSON document together with
// where it came from, so later stages can report on it.
type IntermediateRepresentation struct {
	Root        JSONValue
	RootIsArray bool   // True if the root of the JSON is an array vs an object
	Source      string // File path, "stdin", or "<string>"; empty when unknown
	Index       int    // Position of the document inside its source (NDJSON streams)
}

// IsComposite reports whether v is an object or an array. Raw decoder output
// (map[string]interface{} and []interface{}) counts as composite too.
func IsComposite(v JSONValue) bool {
	switch v.(type) {
	case JSONObject, JSONArray, map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}
