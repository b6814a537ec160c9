package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/field"
	"github.com/matzehuels/stratum/pkg/frame"
)

func TestTagRoundTrip(t *testing.T) {
	tag := Tag("A", "Broadcast", "Broadcast#1")
	assert.Equal(t, "A/Broadcast/Broadcast#1", tag)

	l, label, n, ok := SplitTag(tag)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "Broadcast", "Broadcast#1"}, []string{l, label, n})

	_, _, _, ok = SplitTag("nope")
	assert.False(t, ok)
}

func TestPublishCopiesData(t *testing.T) {
	tbl := NewTable()
	data := field.Constant(2, 2, 1)
	tbl.Publish("A", "n", "t1", frame.Unit, data)

	data.Data[0] = 99
	rec, ok := tbl.Lookup("t1")
	require.True(t, ok)
	assert.Equal(t, float32(1), rec.Data.Data[0])
	assert.Equal(t, "A", rec.Owner)
}

func TestResolveDetectsStaleHandles(t *testing.T) {
	tbl := NewTable()
	h1 := tbl.Publish("A", "n", "t1", frame.Unit, field.Constant(2, 2, 1))

	_, err := tbl.Resolve(h1)
	require.NoError(t, err)

	h2 := tbl.Publish("A", "n", "t1", frame.Unit, field.Constant(2, 2, 2))
	_, err = tbl.Resolve(h1)
	assert.True(t, errors.Is(err, errors.ErrCodeDanglingBroadcast))

	rec, err := tbl.Resolve(h2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), rec.Data.Data[0])

	tbl.Unpublish("t1")
	_, err = tbl.Resolve(h2)
	assert.True(t, errors.Is(err, errors.ErrCodeDanglingBroadcast))
}

func TestUnpublishOwnerAndNode(t *testing.T) {
	tbl := NewTable()
	tbl.Publish("A", "n1", "A/x/n1", frame.Unit, nil)
	tbl.Publish("A", "n2", "A/x/n2", frame.Unit, nil)
	tbl.Publish("B", "n1", "B/x/n1", frame.Unit, nil)

	assert.Equal(t, []string{"A/x/n2"}, tbl.UnpublishNode("A", "n2"))
	assert.Equal(t, []string{"A/x/n1"}, tbl.UnpublishOwner("A"))
	assert.Equal(t, []string{"B/x/n1"}, tbl.Tags())
	assert.Equal(t, 1, tbl.Len())
	assert.False(t, tbl.Unpublish("A/x/n1"))
}

func TestOnChange(t *testing.T) {
	tbl := NewTable()
	var got []string
	tbl.OnChange(func(k ChangeKind, tag string) {
		got = append(got, k.String()+":"+tag)
		// Listeners may read the table.
		_ = tbl.Len()
	})

	tbl.Publish("A", "n", "t", frame.Unit, nil)
	tbl.Publish("A", "n", "t", frame.Unit, nil)
	tbl.Unpublish("t")
	assert.Equal(t, []string{"added:t", "updated:t", "removed:t"}, got)
}

func TestCurrentAndRecords(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Current("t")
	assert.False(t, ok)

	h := tbl.Publish("A", "n", "t", frame.Unit, nil)
	cur, ok := tbl.Current("t")
	require.True(t, ok)
	assert.Equal(t, h, cur)
	assert.Len(t, tbl.Records(), 1)

	tbl.Clear()
	assert.Zero(t, tbl.Len())
}
