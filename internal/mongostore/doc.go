// Package mongostore implements model.Collection over the MongoDB Go
// driver (v2).
//
// Pipelines are encoded to bson.A with one bson.D per stage. Document keys
// are written in sorted order so the same pipeline always produces the same
// bytes on the wire; ir.Sort keeps its own key order because the store
// honours it. Results are decoded back into ir.Doc with nested documents as
// ir.Doc, arrays as []any and BSON datetimes as time.Time.
package mongostore
