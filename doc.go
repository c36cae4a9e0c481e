// Package tagtree serializes scientific domain objects into tagged trees and
// reads them back, with every tagged node checked against a JSON Schema.
//
// The root package holds the engine:
//
// - Registry maps tag families and version ranges to Converters
// - Migrator upgrades nodes written at older minor versions
// - Manifest aggregates tag and schema bindings of one extension
// - Session runs the write (Encode, Dump) and read (Decode, Load, Check) pipelines
//
// Problems are reported per node with an absolute JSON Pointer and a stable
// code (see CodeOf). Document-level calls collect every problem into a
// Report unless WithFailFast is set on the context.
//
// Layout:
// - tree: ordered tree values and YAML/JSON codecs
// - resource: schema stores, HTTP fetching and the cycle-checking resolver
// - validate: the JSON Schema gate
// - sci, convert: bundled domain objects, converters, schemas and migrations
// - container: document files in YAML, JSON or CBOR
// - cmd/tagtree: the CLI
//
// Typical usage:
//
//	session, err := convert.NewSession()
//	doc, report := session.Dump(ctx, tagtree.Entry{Key: "force", Object: sci.Scalar(12, "kN")})
//	err = container.WriteFile("forces.yaml", doc)
//
//	doc, err := container.ReadFile("forces.yaml")
//	entries, report := session.Load(ctx, doc)
package tagtree
