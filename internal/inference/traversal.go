package inference

import (
	"sort"

	"github.com/mcncl/schemagen/internal/models"
	"github.com/mcncl/schemagen/internal/schema"
)

// noParent marks the root node of a work list.
const noParent = -1

type relationKind int

const (
	relationRoot relationKind = iota
	relationAttribute
	relationElement
)

// relation is how a node hangs off its parent: by attribute name for objects,
// by position for arrays.
type relation struct {
	kind  relationKind
	key   string
	index int
}

// node is one in-progress composite value on the work list. Parents are
// referenced by their index in the list, never by pointer: appending children
// may move the backing array but leaves every existing index valid.
type node struct {
	parent int
	rel    relation
	source models.JSONValue

	// visited is set on the first visit, when the accumulator below is
	// initialized and the children are pushed.
	visited    bool
	isArray    bool
	properties map[string]schema.Schema
	elements   []schema.Schema
}

// builder drives one traversal. It is created per Derive call, so the work
// list never outlives the call.
type builder struct {
	classifier *Classifier
	merger     *Merger
	recordSize bool
	frontier   []node
}

func newBuilder(opts Options) *builder {
	return &builder{
		classifier: NewClassifier(opts),
		merger:     opts.merger(),
		recordSize: opts.RecordBounds,
	}
}

// Derive infers the minimal schema of a single document.
func Derive(v models.JSONValue) (schema.Schema, error) {
	return DeriveWithOptions(v, Options{})
}

// DeriveWithOptions infers the schema of a single document using opts.
func DeriveWithOptions(v models.JSONValue, opts Options) (schema.Schema, error) {
	return newBuilder(opts).derive(v)
}

// derive reduces v to one schema. Composite values are processed depth-first
// from an explicit stack, so nesting depth costs heap, not call stack.
func (b *builder) derive(v models.JSONValue) (result schema.Schema, err error) {
	defer recoverInvariant(&err)

	if !models.IsComposite(v) {
		return b.classifier.Classify(v)
	}

	b.frontier = append(b.frontier[:0], node{parent: noParent, source: v})
	defer func() { b.frontier = nil }()

	for len(b.frontier) > 0 {
		top := len(b.frontier) - 1

		if b.frontier[top].visited {
			// Every child pushed after this node has been finalized, so the
			// accumulator is complete.
			current := b.frontier[top]
			b.frontier = b.frontier[:top]

			s := b.finish(&current)
			if current.parent == noParent {
				return s, nil
			}
			b.attach(current.parent, current.rel, s)
			continue
		}

		if err := b.expand(top); err != nil {
			return nil, err
		}
	}

	panic(invariant("work list drained without producing a schema"))
}

// expand performs the first visit of the node at index idx: it initializes
// the accumulator, classifies primitive children in place and pushes one node
// per composite child.
func (b *builder) expand(idx int) error {
	switch source := b.frontier[idx].source.(type) {
	case models.JSONObject:
		return b.expandObject(idx, source)
	case map[string]interface{}:
		return b.expandObject(idx, source)
	case models.JSONArray:
		return b.expandArray(idx, source)
	case []interface{}:
		return b.expandArray(idx, source)
	default:
		panic(invariant("work list node holds non-composite value %T", source))
	}
}

func (b *builder) expandObject(idx int, obj map[string]models.JSONValue) error {
	n := &b.frontier[idx]
	n.visited = true
	n.properties = make(map[string]schema.Schema, len(obj))

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := obj[key]
		if models.IsComposite(value) {
			b.frontier = append(b.frontier, node{
				parent: idx,
				rel:    relation{kind: relationAttribute, key: key},
				source: value,
			})
			continue
		}
		s, err := b.classifier.Classify(value)
		if err != nil {
			return err
		}
		b.attach(idx, relation{kind: relationAttribute, key: key}, s)
	}
	return nil
}

func (b *builder) expandArray(idx int, arr []models.JSONValue) error {
	n := &b.frontier[idx]
	n.visited = true
	n.isArray = true
	n.elements = make([]schema.Schema, len(arr))

	for i, value := range arr {
		if models.IsComposite(value) {
			b.frontier = append(b.frontier, node{
				parent: idx,
				rel:    relation{kind: relationElement, index: i},
				source: value,
			})
			continue
		}
		s, err := b.classifier.Classify(value)
		if err != nil {
			return err
		}
		b.attach(idx, relation{kind: relationElement, index: i}, s)
	}
	return nil
}

// attach stores a finished child schema in its parent's accumulator.
func (b *builder) attach(parent int, rel relation, s schema.Schema) {
	if parent < 0 || parent >= len(b.frontier) {
		panic(invariant("parent index %d missing from work list of length %d", parent, len(b.frontier)))
	}
	p := &b.frontier[parent]
	if !p.visited {
		panic(invariant("attaching to node %d before its accumulator was initialized", parent))
	}

	switch rel.kind {
	case relationAttribute:
		if p.isArray || p.properties == nil {
			panic(invariant("attribute %q attached to non-object node %d", rel.key, parent))
		}
		p.properties[rel.key] = s
	case relationElement:
		if !p.isArray || rel.index < 0 || rel.index >= len(p.elements) {
			panic(invariant("element %d attached to non-array node %d", rel.index, parent))
		}
		p.elements[rel.index] = s
	default:
		panic(invariant("node with no relation attached to node %d", parent))
	}
}

// finish converts a completed accumulator into a schema.
func (b *builder) finish(n *node) schema.Schema {
	if !n.isArray {
		required := make([]string, 0, len(n.properties))
		for key := range n.properties {
			required = append(required, key)
		}
		return schema.NewObjectSchema(n.properties, required)
	}

	// Homogeneous policy: every element is folded into one items schema.
	var items schema.Schema
	for i, element := range n.elements {
		if element == nil {
			panic(invariant("array element %d was never finalized", i))
		}
		items = b.merger.Merge(items, element)
	}
	s := &schema.ArraySchema{Items: items}
	if b.recordSize {
		lo, hi := len(n.elements), len(n.elements)
		s.MinItems, s.MaxItems = &lo, &hi
	}
	return s
}
