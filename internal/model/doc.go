// Package model binds a named model to the collection that executes its
// pipelines.
//
// The Collection and Cursor interfaces are the only contact points with a
// document store. Package mongostore implements them over the MongoDB
// driver, package memstore over an in-memory slice of documents, and package
// store wraps any Collection with an execution journal.
//
// Catalog implements naming resolution: an aggregate type such as
// "OrderAggregate" finds the "Order" model by stripping its suffix.
package model
