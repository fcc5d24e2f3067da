package inference

import (
	"github.com/mcncl/schemagen/internal/config"
	"github.com/mcncl/schemagen/internal/models"
	"github.com/mcncl/schemagen/internal/schema"
)

// Generator accumulates evidence from successive documents into one running
// schema. A Generator is not safe for concurrent use.
type Generator struct {
	opts      Options
	merger    *Merger
	schema    schema.Schema
	documents int
}

// NewGenerator creates a Generator producing minimal leaf schemas.
func NewGenerator() *Generator {
	return NewGeneratorWithOptions(Options{})
}

// NewGeneratorWithOptions creates a Generator using opts.
func NewGeneratorWithOptions(opts Options) *Generator {
	return &Generator{
		opts:   opts,
		merger: opts.merger(),
	}
}

// NewGeneratorWithConfig creates a Generator from the application config.
func NewGeneratorWithConfig(cfg *config.Config) (*Generator, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewGeneratorWithOptions(opts), nil
}

// DeriveSchema infers the schema of v without touching the retained schema.
func (g *Generator) DeriveSchema(v models.JSONValue) (schema.Schema, error) {
	return newBuilder(g.opts).derive(v)
}

// ExpandSchema infers the schema of v and merges it into the retained schema.
// On error the retained schema is left as it was.
func (g *Generator) ExpandSchema(v models.JSONValue) error {
	derived, err := g.DeriveSchema(v)
	if err != nil {
		return err
	}
	g.schema = g.merger.Merge(g.schema, derived)
	g.documents++
	return nil
}

// Merge folds an already derived schema into the retained one.
func (g *Generator) Merge(s schema.Schema) {
	g.schema = g.merger.Merge(g.schema, s)
}

// Schema returns the retained schema, or nil before the first document.
func (g *Generator) Schema() schema.Schema {
	return g.schema
}

// Documents returns the number of documents folded into the retained schema.
func (g *Generator) Documents() int {
	return g.documents
}

// Seed replaces the retained state with a schema already accumulated from
// the given number of documents, typically loaded from a store.
func (g *Generator) Seed(s schema.Schema, documents int) {
	g.schema = s
	g.documents = documents
}

// Reset drops the retained schema.
func (g *Generator) Reset() {
	g.schema = nil
	g.documents = 0
}
