package broadcast

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
)

// Tag derives the broadcast tag of a publisher node.
func Tag(layerID, label, nodeID string) string {
	return layerID + "/" + label + "/" + nodeID
}

// SplitTag is the inverse of [Tag]. It reports false for malformed tags.
func SplitTag(tag string) (layerID, label, nodeID string, ok bool) {
	parts := strings.Split(tag, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// Record is a published snapshot.
type Record struct {
	Tag         string
	Owner       string // publishing layer id
	NodeID      string
	Frame       frame.Frame
	Data        *field.Field
	Generation  uint64
	PublishedAt time.Time
}

// Handle identifies one specific publication of a tag.
type Handle struct {
	Tag        string
	Generation uint64
}

// ChangeKind describes a table mutation.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// ChangeFunc observes table mutations. It is called after the table lock is
// released, so it may read the table.
type ChangeFunc func(kind ChangeKind, tag string)

// Table maps tags to published records. It is safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	records   map[string]Record
	gen       uint64
	listeners []ChangeFunc
	now       func() time.Time
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{records: make(map[string]Record), now: time.Now}
}

// OnChange registers fn to observe every mutation.
func (t *Table) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Publish stores a deep copy of data under tag, replacing any previous
// record, and returns a handle for this publication.
func (t *Table) Publish(owner, nodeID, tag string, f frame.Frame, data *field.Field) Handle {
	t.mu.Lock()
	t.gen++
	_, existed := t.records[tag]
	rec := Record{
		Tag:         tag,
		Owner:       owner,
		NodeID:      nodeID,
		Frame:       f,
		Data:        data.Clone(),
		Generation:  t.gen,
		PublishedAt: t.now(),
	}
	t.records[tag] = rec
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	kind := Added
	if existed {
		kind = Updated
	}
	notify(listeners, kind, tag)
	return Handle{Tag: tag, Generation: rec.Generation}
}

// Unpublish removes tag. It reports whether a record was removed.
func (t *Table) Unpublish(tag string) bool {
	removed := t.removeWhere(func(r Record) bool { return r.Tag == tag })
	return len(removed) > 0
}

// UnpublishOwner removes every record published by a layer and returns the
// removed tags, sorted.
func (t *Table) UnpublishOwner(owner string) []string {
	return t.removeWhere(func(r Record) bool { return r.Owner == owner })
}

// UnpublishNode removes every record published by one node of a layer.
func (t *Table) UnpublishNode(owner, nodeID string) []string {
	return t.removeWhere(func(r Record) bool { return r.Owner == owner && r.NodeID == nodeID })
}

func (t *Table) removeWhere(match func(Record) bool) []string {
	t.mu.Lock()
	var removed []string
	for tag, r := range t.records {
		if match(r) {
			delete(t.records, tag)
			removed = append(removed, tag)
		}
	}
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	slices.Sort(removed)
	for _, tag := range removed {
		notify(listeners, Removed, tag)
	}
	return removed
}

// Lookup returns the current record for tag. The returned data is shared
// with the table and must not be modified.
func (t *Table) Lookup(tag string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[tag]
	return r, ok
}

// Resolve returns the record h was issued for. It fails with
// DANGLING_BROADCAST when the tag is gone or has been republished since.
func (t *Table) Resolve(h Handle) (Record, error) {
	r, ok := t.Lookup(h.Tag)
	if !ok {
		return Record{}, errors.New(errors.ErrCodeDanglingBroadcast, "tag %q is not published", h.Tag)
	}
	if r.Generation != h.Generation {
		return Record{}, errors.New(errors.ErrCodeDanglingBroadcast,
			"tag %q was republished (generation %d, handle %d)", h.Tag, r.Generation, h.Generation)
	}
	return r, nil
}

// Current returns a handle to the latest publication of tag.
func (t *Table) Current(tag string) (Handle, bool) {
	r, ok := t.Lookup(tag)
	if !ok {
		return Handle{}, false
	}
	return Handle{Tag: tag, Generation: r.Generation}, true
}

// Tags returns every published tag, sorted.
func (t *Table) Tags() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.records))
}

// Records returns every record ordered by tag.
func (t *Table) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, tag := range slices.Sorted(maps.Keys(t.records)) {
		out = append(out, t.records[tag])
	}
	return out
}

// Len returns the number of published tags.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Clear removes every record.
func (t *Table) Clear() {
	t.removeWhere(func(Record) bool { return true })
}

func notify(listeners []ChangeFunc, kind ChangeKind, tag string) {
	for _, fn := range listeners {
		fn(kind, tag)
	}
}
