// Package criteria provides the filter collaborator used by relations: an
// immutable selector document with a conjunction operation.
//
// A Criteria wraps a store selector such as {"status": "paid"}. Every builder
// returns a fresh Criteria; nothing is modified in place, so a Criteria can be
// shared between relations safely.
//
// CONJUNCTION
//
// And combines two selectors so that a document must satisfy both:
//
//	{"status": "paid"} AND {"priority": "high"}
//	  → {"status": "paid", "priority": "high"}
//
//	{"total": {"$gt": 10}} AND {"total": {"$lt": 50}}
//	  → {"$and": [{"total": {"$gt": 10}}, {"total": {"$lt": 50}}]}
//
// Disjoint selectors are merged flat. Overlapping selectors are combined
// under $and, flattening any existing top-level $and so nesting never grows
// with chaining depth.
package criteria
