// Package broadcast holds the registry-wide table of published snapshots.
//
// A publisher node in one layer stores a [Record] under a [Tag]; subscriber
// nodes in later layers read it back. The table copies the published data
// on every [Table.Publish], so a record never aliases memory owned by a
// node and stays valid after its publisher is gone.
//
// Each publish bumps the table generation. A [Handle] remembers the
// generation of the record it was issued for, and [Table.Resolve] reports
// DANGLING_BROADCAST once that record has been replaced or removed:
//
//	h := t.Publish("A", "Broadcast#1", tag, f, data)
//	rec, err := t.Resolve(h) // ok
//	t.Unpublish(tag)
//	_, err = t.Resolve(h)    // DANGLING_BROADCAST
package broadcast
