package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/render/topology"
)

func testDocument(value float64) *document.Document {
	doc := document.New()
	doc.IDCount = 1
	doc.GraphOrder = []string{"base"}
	doc.GraphNodes["base"] = document.Layer{
		ID:          "base",
		IDCount:     1,
		ModelConfig: node.DefaultConfig(),
		Size:        [2]float64{1, 1},
		Nodes:       []document.Node{{Label: node.KindConstant, ID: "c", Attrs: node.Attrs{"value": value}}},
		Links:       []document.Link{},
	}
	doc.ExportParam = document.ExportParam{
		Shape:   [2]int{8, 8},
		Tiling:  [2]int{1, 1},
		Sources: []document.SourceRef{{LayerID: "base", NodeID: "c", PortID: node.PortOut}},
	}
	return doc
}

// countingCache wraps a cache and counts hits.
type countingCache struct {
	cache.Cache
	hits, sets int
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.Cache.Get(ctx, key)
	if ok {
		c.hits++
	}
	return data, ok, err
}

func (c *countingCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.sets++
	return c.Cache.Set(ctx, key, data, ttl)
}

func newTestRunner(t *testing.T) (*Runner, *countingCache) {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cc := &countingCache{Cache: fc}
	return NewRunner(cc, nil, log.New(io.Discard)), cc
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"path", Options{Path: "a.stratum.json"}, false},
		{"document", Options{Document: document.New()}, false},
		{"neither", Options{}, true},
		{"negative z", Options{Path: "a", ZScale: -1}, true},
		{"tiny shape", Options{Path: "a", Shape: [2]int{1, 4}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.opts.ZScale != compositor.DefaultZScale {
				t.Errorf("ZScale = %g, want default", tt.opts.ZScale)
			}
		})
	}
}

func TestOptionsSpecOverrides(t *testing.T) {
	base := compositor.Spec{Shape: [2]int{4, 4}, Path: "doc.png"}
	o := Options{Output: "out.png", Shape: [2]int{16, 8}}
	got := o.Spec(base)
	if got.Path != "out.png" || got.Shape != [2]int{16, 8} {
		t.Errorf("Spec() = %+v", got)
	}
	if got := (&Options{}).Spec(base); got.Path != "doc.png" || got.Shape != [2]int{4, 4} {
		t.Errorf("Spec() without overrides = %+v", got)
	}
}

func TestDocumentHashIgnoresExport(t *testing.T) {
	a := testDocument(1)
	b := testDocument(1)
	b.ExportParam.Shape = [2]int{32, 32}
	ha, err := DocumentHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := DocumentHash(b)
	if ha != hb {
		t.Error("export parameters changed the document hash")
	}
	hc, _ := DocumentHash(testDocument(2))
	if ha == hc {
		t.Error("node attributes did not change the document hash")
	}
	if a.ExportParam.Shape != [2]int{8, 8} {
		t.Error("DocumentHash modified its argument")
	}
}

func TestExecuteCachesExport(t *testing.T) {
	ctx := context.Background()
	runner, cc := newTestRunner(t)
	out := filepath.Join(t.TempDir(), "terrain.png")

	res, err := runner.Execute(ctx, Options{Document: testDocument(1), Output: out})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.CacheInfo.ExportHit {
		t.Error("first run should miss")
	}
	if res.Stats.Layers != 1 || res.Stats.Nodes != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if len(res.Paths) != 2 || res.Paths[1] != compositor.PreviewPath(out) {
		t.Errorf("Paths = %v", res.Paths)
	}
	for _, p := range res.Paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	again, err := runner.Execute(ctx, Options{Document: testDocument(1)})
	if err != nil {
		t.Fatal(err)
	}
	if !again.CacheInfo.ExportHit || cc.hits != 1 {
		t.Errorf("second run should hit, hits = %d", cc.hits)
	}
	if string(again.Artifacts[compositor.ArtifactElevation]) != string(res.Artifacts[compositor.ArtifactElevation]) {
		t.Error("cached elevation differs")
	}
	if len(again.Paths) != 0 {
		t.Errorf("no output path was given, wrote %v", again.Paths)
	}

	refreshed, err := runner.Execute(ctx, Options{Document: testDocument(1), Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.ExportHit {
		t.Error("refresh should bypass the cache")
	}
	if cc.sets != 2 {
		t.Errorf("sets = %d, want 2", cc.sets)
	}
}

func TestExecuteUnresolvedSource(t *testing.T) {
	runner, _ := newTestRunner(t)
	doc := testDocument(1)
	doc.ExportParam.Sources[0].NodeID = "missing"
	if _, err := runner.Execute(context.Background(), Options{Document: doc}); err == nil {
		t.Fatal("expected an error for an unresolved source")
	}
}

func TestExecuteFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.stratum.json")
	if err := document.Export(path, testDocument(3)); err != nil {
		t.Fatal(err)
	}
	runner, _ := newTestRunner(t)
	res, err := runner.Execute(context.Background(), Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Registry.Layer("base"); !ok {
		t.Error("layer base not replayed")
	}
}

func TestTopologyCached(t *testing.T) {
	ctx := context.Background()
	runner, _ := newTestRunner(t)
	reg, err := runner.Replay(ctx, testDocument(1), Options{Logger: log.New(io.Discard), Factory: node.DefaultFactory()})
	if err != nil {
		t.Fatal(err)
	}
	first, hit, err := runner.Topology(ctx, reg, topology.FormatDOT, topology.Options{})
	if err != nil || hit {
		t.Fatalf("Topology() hit = %v, err = %v", hit, err)
	}
	second, hit, err := runner.Topology(ctx, reg, topology.FormatDOT, topology.Options{})
	if err != nil || !hit {
		t.Fatalf("Topology() second hit = %v, err = %v", hit, err)
	}
	if string(first) != string(second) {
		t.Error("cached diagram differs")
	}
	if _, hit, _ := runner.Topology(ctx, reg, topology.FormatDOT, topology.Options{Detailed: true}); hit {
		t.Error("detailed diagram shares the plain cache entry")
	}
}

func TestWriteArtifactsSkipsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	written, err := WriteArtifacts(path, map[string][]byte{compositor.ArtifactElevation: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 1 || written[0] != path {
		t.Errorf("written = %v", written)
	}
}
