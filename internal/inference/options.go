package inference

import (
	"fmt"

	"github.com/mcncl/schemagen/internal/config"
)

// Policy decides what merging two schemas of different type families yields.
type Policy string

const (
	// PolicyUnion keeps every family as an anyOf alternative.
	PolicyUnion Policy = "union"
	// PolicyAny widens to the empty schema, which accepts anything.
	PolicyAny Policy = "any"
)

// ParsePolicy converts a configuration value into a Policy. The empty string
// selects PolicyUnion.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyUnion:
		return PolicyUnion, nil
	case PolicyAny:
		return PolicyAny, nil
	default:
		return "", fmt.Errorf("unknown heterogeneous policy %q (want %q or %q)", s, PolicyUnion, PolicyAny)
	}
}

// Options controls which observed constraints are attached to leaf schemas and
// how heterogeneous schemas are merged. The zero value produces minimal leaves
// and union merges.
type Options struct {
	Policy Policy

	// RecordBounds records numeric minimum/maximum, string lengths and array
	// item counts from the observed values.
	RecordBounds bool
	// RecordEnums records every observed scalar value as an enumeration.
	// Enumerations growing past MaxEnum are dropped; MaxEnum <= 0 means no cap.
	RecordEnums bool
	MaxEnum     int
	// RecordExamples keeps up to MaxExamples distinct observed values
	// (MaxExamples <= 0 means no cap).
	RecordExamples bool
	MaxExamples    int
	// DetectFormats sets the string format keyword for recognised shapes such
	// as UUIDs and RFC 3339 timestamps.
	DetectFormats bool
}

// OptionsFromConfig builds inference options from the application config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, nil
	}
	policy, err := ParsePolicy(cfg.Inference.Policy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Policy:         policy,
		RecordBounds:   cfg.Inference.RecordBounds,
		RecordEnums:    cfg.Inference.RecordEnums,
		MaxEnum:        cfg.Inference.MaxEnum,
		RecordExamples: cfg.Inference.RecordExamples,
		MaxExamples:    cfg.Inference.MaxExamples,
		DetectFormats:  cfg.Inference.DetectFormats,
	}, nil
}

func (o Options) merger() *Merger {
	return &Merger{Policy: o.Policy, MaxEnum: o.MaxEnum, MaxExamples: o.MaxExamples}
}
