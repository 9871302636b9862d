// Package ir provides the pipeline vocabulary shared by every other package:
// documents, sort specifications, stages and pipelines.
//
// This package contains value types and pure helpers only. All other internal
// packages import ir; ir imports nothing internal.
//
// STAGES
//
// A Stage is a single-operator pipeline step such as {"$match": {...}}. The
// builders in package scope emit stages in a fixed order; custom stages keep
// the order in which they were recorded. Stage specs are plain Go values
// (Doc, []any, scalars) plus Sort, which preserves key order.
//
// CANONICAL FORM
//
// MarshalCanonical produces RFC 8785 canonical JSON (UTF-16 key ordering, NFC
// normalized strings, no HTML escaping). Fingerprint hashes the canonical form
// of a pipeline with domain separation, so identical pipelines share an
// identity across processes.
package ir
