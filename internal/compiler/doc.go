// Package compiler turns declarative scope specs into registry scopes.
//
// A spec names a registry, optionally its model and collection, and a list
// of scopes. Each scope contributes query options (match, group, project,
// sort, limit, custom pipeline stages) and may build on sibling scopes
// through uses. Specs are written in YAML or CUE:
//
//	registry: OrderAggregate
//	scopes:
//	  - name: recent
//	    arity: 1
//	    match: {created_at: {$gte: "$1"}}
//	    sort: ["-created_at"]
//	  - name: open_recent
//	    arity: 1
//	    uses: [{name: recent, args: ["$1"]}]
//	    match: {status: open}
//
// # Placeholders
//
// A string value that is exactly "$N" (N >= 1) is replaced by the N-th
// scope argument when the scope is generated. Placeholders may appear
// anywhere inside match, group, project, pipeline, limit and uses args.
// Field references such as "$amount" are left alone.
//
// # Validation
//
// Validate reports every problem it finds with an E2xx code rather than
// stopping at the first. A spec whose scopes use each other in a cycle is
// rejected (E211): generating such a scope would never terminate.
package compiler
