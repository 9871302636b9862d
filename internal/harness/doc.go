// Package harness runs declarative aggregation scenarios.
//
// A scenario loads scope specs and fixture documents, builds a relation by
// chaining scopes and builders, compiles and executes it against in-memory
// collections, and checks assertions on the compiled pipeline and results.
//
// # Scenario Format
//
//	name: open_orders_by_status
//	description: "Open orders grouped by status"
//	specs:
//	  - specs/orders.yaml
//	fixtures: fixtures/orders.yaml
//	registry: OrderAggregate
//	chain:
//	  - scope: open
//	  - scope: since
//	    args: ["2024-03-01"]
//	  - limit: 5
//	select_all: false
//	assertions:
//	  - type: stage_order
//	    ops: ["$match", "$sort", "$limit"]
//	  - type: result_count
//	    count: 2
//	  - type: pluck
//	    field: _id
//	    values: [a1, a2]
//
// Paths are relative to the scenario file.
//
// # Assertion Types
//
//   - stage_order: the compiled pipeline's operators, exactly and in order
//   - stage_count: the number of compiled stages
//   - result_count: the number of documents returned
//   - count: the value returned by Relation.Count
//   - pluck: the values of one field across the results, in order
//   - error: building or running the relation fails with a message containing text
//
// # Deterministic Testing
//
// Every execution is journaled to an in-memory SQLite store with sequential
// execution ids and a step clock, so results and golden snapshots are
// identical across runs.
package harness
