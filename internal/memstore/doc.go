// Package memstore is an in-memory model.Collection that evaluates
// aggregation pipelines over a slice of documents.
//
// It backs the CLI's fixture mode and the scenario harness, so pipelines can
// be executed and asserted on without a database. It supports the stage
// vocabulary the scope compiler emits plus the common custom stages:
//
//	$match      equality, $eq $ne $gt $gte $lt $lte $in $nin $exists $not
//	            $size $regex, and $and $or $nor
//	$group      _id expressions and $sum $avg $min $max $first $last $push
//	            $addToSet $count
//	$sort       ir.Sort or a single-key document
//	$project    inclusion, exclusion and computed fields
//	$limit $skip $count $unwind $addFields $set
//
// Any other stage fails the whole pipeline with an error. Comparison follows
// the store's type-bracketed ordering only as far as numbers, strings, times
// and booleans; values of different kinds do not compare.
package memstore
