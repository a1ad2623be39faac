// Package executor runs GraphQL operations against a schema.Schema,
// breadth first, handing field resolution to a Runtime.
//
// Every field carries an Async flag. The schema builder marks procedure root
// fields async and leaves projections of their results sync. At each depth
// the executor expands sync fields in place through Runtime.ResolveSync and
// queues async ones; the queue for the depth is then resolved by a single
// Runtime.BatchResolveAsync call and the results are completed, which may
// queue the next depth.
//
// Completion follows the usual GraphQL rules: lists complete element by
// element, leaves go through Runtime.SerializeLeafValue, and interfaces and
// unions are narrowed with Runtime.ResolveType before their selection set is
// collected. Fragments apply when their type condition is the object type,
// or an interface or union that the object type belongs to.
//
// Errors are located at the response path of the field. A null produced for
// a Non-Null field propagates to the nearest nullable ancestor, and queued
// tasks below that ancestor are dropped before the next batch.
//
// Async mutation root fields reach the Runtime in one batch, in document
// order; running them one after another is up to the Runtime.
package executor
