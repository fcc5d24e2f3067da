// Package inference infers JSON Schemas from example documents.
//
// A document is reduced to a schema by Derive, which walks the value tree
// with an explicit work list instead of recursion. Primitive values are
// mapped to leaf schemas by the Classifier; arrays fold their elements into
// one items schema with a Merger. A Generator keeps a running schema and
// merges every new document into it, so the result describes all documents
// seen so far regardless of the order they arrived in.
package inference
