package inference

import (
	"encoding/json"
	"math"
	"regexp"
	"unicode/utf8"

	"github.com/mcncl/schemagen/internal/models"
	"github.com/mcncl/schemagen/internal/schema"
)

// Regex patterns for string formats
var (
	uuidRegex     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	rfc3339Regex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
	dateOnlyRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	uriRegex      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^\s]+$`)
)

// Classifier maps primitive JSON values to leaf schemas, attaching the
// observed constraints selected by its options.
type Classifier struct {
	opts Options
}

// NewClassifier creates a Classifier with the given options.
func NewClassifier(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Classify maps a primitive value to its minimal leaf schema. It panics when
// given an object or array.
func Classify(v models.JSONValue) (schema.Schema, error) {
	return (&Classifier{}).Classify(v)
}

// Classify maps a primitive value to a leaf schema. Values outside the JSON
// data model return an unsupported error; objects and arrays panic, since the
// traversal never hands them to the classifier.
func (c *Classifier) Classify(v models.JSONValue) (schema.Schema, error) {
	switch val := v.(type) {
	case nil:
		return &schema.NullSchema{}, nil
	case bool:
		return c.boolean(val), nil
	case string:
		return c.string(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return c.integer(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, unsupported("number %q is out of range", val.String())
		}
		return c.float(f)
	case float64:
		return c.float(val)
	case float32:
		return c.float(float64(val))
	case int:
		return c.integer(int64(val)), nil
	case int8:
		return c.integer(int64(val)), nil
	case int16:
		return c.integer(int64(val)), nil
	case int32:
		return c.integer(int64(val)), nil
	case int64:
		return c.integer(val), nil
	case uint8:
		return c.integer(int64(val)), nil
	case uint16:
		return c.integer(int64(val)), nil
	case uint32:
		return c.integer(int64(val)), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, unsupported("integer %d does not fit in 64 signed bits", val)
		}
		return c.integer(int64(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, unsupported("integer %d does not fit in 64 signed bits", val)
		}
		return c.integer(int64(val)), nil
	}
	if models.IsComposite(v) {
		panic(invariant("leaf classifier called with composite value %T", v))
	}
	return nil, unsupported("cannot classify value of type %T", v)
}

func (c *Classifier) boolean(b bool) schema.Schema {
	s := &schema.BooleanSchema{}
	if c.opts.RecordEnums {
		s.Enum = []bool{b}
	}
	return s
}

func (c *Classifier) integer(i int64) schema.Schema {
	s := &schema.IntegerSchema{}
	if c.opts.RecordBounds {
		lo, hi := i, i
		s.Minimum, s.Maximum = &lo, &hi
	}
	if c.opts.RecordEnums {
		s.Enum = []int64{i}
	}
	if c.opts.RecordExamples {
		s.Examples = []int64{i}
	}
	return s
}

// float classifies a decoded floating-point value. Integral values become
// integers so that 3 and 3.0 agree no matter which decoder produced them.
func (c *Classifier) float(f float64) (schema.Schema, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, unsupported("number %v is not representable in JSON", f)
	}
	if math.Trunc(f) == f && f >= math.MinInt64 && f < math.MaxInt64 {
		return c.integer(int64(f)), nil
	}
	s := &schema.NumberSchema{}
	if c.opts.RecordBounds {
		lo, hi := f, f
		s.Minimum, s.Maximum = &lo, &hi
	}
	if c.opts.RecordEnums {
		s.Enum = []float64{f}
	}
	if c.opts.RecordExamples {
		s.Examples = []float64{f}
	}
	return s, nil
}

func (c *Classifier) string(str string) schema.Schema {
	s := &schema.StringSchema{}
	if c.opts.RecordBounds {
		n := utf8.RuneCountInString(str)
		lo, hi := n, n
		s.MinLength, s.MaxLength = &lo, &hi
	}
	if c.opts.DetectFormats {
		s.Format = detectFormat(str)
	}
	if c.opts.RecordEnums {
		s.Enum = []string{str}
	}
	if c.opts.RecordExamples {
		s.Examples = []string{str}
	}
	return s
}

// detectFormat returns the JSON Schema format of str, or "" when none fits.
func detectFormat(str string) string {
	switch {
	case uuidRegex.MatchString(str):
		return "uuid"
	case rfc3339Regex.MatchString(str):
		return "date-time"
	case dateOnlyRegex.MatchString(str):
		return "date"
	case emailRegex.MatchString(str):
		return "email"
	case uriRegex.MatchString(str):
		return "uri"
	default:
		return ""
	}
}
