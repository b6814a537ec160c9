// Package registry owns the layers of a project, their order and the
// broadcast table that connects them.
//
// # Order
//
// Layers are kept in an explicit order. A layer later in the order is
// "above" an earlier one: it is drawn on top and it is the only kind of
// layer that reacts to broadcasts published below it. When a publisher in
// layer L recomputes, the registry stores a snapshot of its data and then
// refreshes the subscribers of that tag in every layer strictly after L.
// Subscribers at or before L keep their previous output until something
// else makes them recompute.
//
// # Persistence
//
// [Registry.Serialize] and [Registry.Deserialize] convert to and from
// [document.Document]. Loading rebuilds each layer through the public API
// and then recomputes every layer in order, so publishers republish and
// subscribers resolve against the fresh table.
//
// A Registry is not safe for concurrent use; callers that share one across
// goroutines serialize access themselves.
package registry
