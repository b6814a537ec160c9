package store

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/node"
)

var quiet = log.New(io.Discard)

func sampleDoc() *document.Document {
	doc := document.New()
	doc.GraphOrder = []string{"A"}
	doc.GraphNodes["A"] = document.Layer{
		ID:          "A",
		ModelConfig: node.DefaultConfig(),
		Size:        [2]float64{1, 1},
		Nodes:       []document.Node{{Label: node.KindConstant, ID: "c", Attrs: node.Attrs{"value": 2.0}}},
		Links:       []document.Link{},
	}
	return doc
}

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Load(ctx, "alps")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	info, err := s.Save(ctx, "alps", sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "alps", info.Name)
	assert.Len(t, info.Hash, 64)
	assert.Positive(t, info.Size)

	got, err := s.Load(ctx, "alps")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got.GraphOrder)
	assert.Equal(t, "c", got.GraphNodes["A"].Nodes[0].ID)

	_, err = s.Save(ctx, "rockies", document.New())
	require.NoError(t, err)
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alps", list[0].Name)
	assert.Equal(t, info.Hash, list[0].Hash)

	require.NoError(t, s.Delete(ctx, "alps"))
	assert.True(t, errors.Is(s.Delete(ctx, "alps"), errors.ErrCodeNotFound))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), quiet)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStoreRejectsBadNames(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), quiet)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "../escape", document.New())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("STRATUM_MONGO_URI")
	if uri == "" {
		t.Skip("STRATUM_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoOptions{URI: uri, Database: "stratum_test", Collection: t.Name()}, quiet)
	require.NoError(t, err)
	defer s.Close()
	_ = s.coll.Drop(ctx)
	exerciseStore(t, s)
}
