// Package scope implements named, composable query scopes and the Relation
// that compiles them into an aggregation pipeline.
//
// ARCHITECTURE:
//
//	Registry ──Define──▶ Template (name, seed, body)
//	    │
//	    └──Scope(name, args)──▶ Relation ──Compile──▶ ir.Pipeline
//	                               │
//	                               └──Load/Count/First/Pluck──▶ model.Collection
//
// A Registry is bound to one model. Scopes are defined on it with a Body that
// returns a partial Query or another Relation. Calling a scope generates a
// Relation; chaining builders on that Relation produces new relations whose
// state is the merge of both sides.
//
// MERGE ALGEBRA:
//
// Merging relation A with relation B (B is "the newer one") applies one rule
// per field:
//
//	criteria   A AND B
//	pipeline   A's custom stages followed by B's
//	group      deep merge, B's leaves win
//	project    deep merge, B's leaves win
//	sort       B's if present, else A's
//	limit      B's if present, else A's
//
// Relations from different registries never merge; the result carries a
// SCOPE_MISMATCH error.
//
// STAGE ORDER:
//
// Compile always emits stages in the same order, regardless of the order in
// which builders were chained:
//
//	$match → $group → $sort → $project → $limit → custom stages
//
// Compilation is deterministic and does not modify the relation.
//
// ERRORS:
//
// Builders never return errors. A failure (unknown scope, unbound model,
// mismatched registries, body error) is recorded on the returned relation and
// reported by Err and by every terminal operation. Define is the exception:
// it fails immediately when the registry has no model.
//
// CONCURRENCY:
//
// A Registry is safe for concurrent use. A Relation is not: the in-place
// mutators (Sort, Limit, AddStages, OverrideStages, Cache) and the result
// cache assume a single goroutine.
package scope
