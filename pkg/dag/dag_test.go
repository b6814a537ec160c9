package dag

import (
	"context"
	"errors"
	"slices"
	"testing"

	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/field"
)

// testNode passes its "in" input through to "out", adding one.
type testNode struct {
	id     string
	in     map[string]*field.Field
	out    *field.Field
	inputs []string
}

func newTestNode(id string, inputs ...string) *testNode {
	return &testNode{id: id, in: map[string]*field.Field{}, inputs: inputs}
}

func (n *testNode) ID() string                           { return n.id }
func (n *testNode) SetID(id string)                      { n.id = id }
func (n *testNode) Inputs() []string                     { return n.inputs }
func (n *testNode) Outputs() []string                    { return []string{"out"} }
func (n *testNode) SetInput(port string, f *field.Field) { n.in[port] = f }
func (n *testNode) Output(string) *field.Field           { return n.out }

func (n *testNode) compute() {
	var v float32 = 1
	for _, p := range n.inputs {
		if f := n.in[p]; f != nil {
			v += f.Data[0]
		}
	}
	n.out = field.Constant(2, 2, v)
}

func computeAll(g *DAG, visited *[]string) ComputeFunc {
	return func(_ context.Context, id string) error {
		n, _ := g.Node(id)
		n.(*testNode).compute()
		if visited != nil {
			*visited = append(*visited, id)
		}
		return nil
	}
}

func chain(t *testing.T) *DAG {
	t.Helper()
	g := New()
	for _, n := range []*testNode{newTestNode("a"), newTestNode("b", "in"), newTestNode("c", "in")} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	mustLink(t, g, "a", "b")
	mustLink(t, g, "b", "c")
	return g
}

func mustLink(t *testing.T, g *DAG, from, to string) {
	t.Helper()
	if err := g.AddLink(Link{From: from, FromPort: "out", To: to, ToPort: "in"}); err != nil {
		t.Fatalf("AddLink %s->%s: %v", from, to, err)
	}
}

func TestAddNode(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr error
	}{
		{"single", []string{"a"}, nil},
		{"empty id", []string{""}, ErrInvalidNodeID},
		{"duplicate", []string{"a", "a"}, ErrDuplicateNodeID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			var err error
			for _, id := range tt.ids {
				if err = g.AddNode(newTestNode(id)); err != nil {
					break
				}
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuplicateNodeIsCoded(t *testing.T) {
	g := New()
	_ = g.AddNode(newTestNode("a"))
	err := g.AddNode(newTestNode("a"))
	if !errs.Is(err, errs.ErrCodeDuplicateID) {
		t.Fatalf("want DUPLICATE_ID, got %v", err)
	}
}

func TestAddLinkValidation(t *testing.T) {
	tests := []struct {
		name string
		link Link
		want error
	}{
		{"unknown source", Link{From: "x", FromPort: "out", To: "b", ToPort: "in"}, ErrUnknownNode},
		{"unknown target", Link{From: "a", FromPort: "out", To: "x", ToPort: "in"}, ErrUnknownNode},
		{"unknown output", Link{From: "a", FromPort: "nope", To: "c", ToPort: "in"}, ErrUnknownPort},
		{"unknown input", Link{From: "a", FromPort: "out", To: "c", ToPort: "nope"}, ErrUnknownPort},
		{"input in use", Link{From: "a", FromPort: "out", To: "b", ToPort: "in"}, ErrPortInUse},
		{"self link", Link{From: "d", FromPort: "out", To: "d", ToPort: "in"}, ErrGraphHasCycle},
		{"fresh target", Link{From: "c", FromPort: "out", To: "a2", ToPort: "in"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain(t)
			_ = g.AddNode(newTestNode("d", "in"))
			_ = g.AddNode(newTestNode("a2", "in"))
			err := g.AddLink(tt.link)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAddLinkRejectsCycleWithoutCommit(t *testing.T) {
	g := New()
	_ = g.AddNode(newTestNode("a", "in"))
	_ = g.AddNode(newTestNode("b", "in"))
	mustLink(t, g, "a", "b")
	before := g.Links()

	err := g.AddLink(Link{From: "b", FromPort: "out", To: "a", ToPort: "in"})
	if !errs.Is(err, errs.ErrCodeCyclicGraph) {
		t.Fatalf("want CYCLIC_GRAPH, got %v", err)
	}
	if !slices.Equal(before, g.Links()) {
		t.Fatalf("links changed after rejected link: %v", g.Links())
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTopoOrder(t *testing.T) {
	g := New()
	for _, n := range []*testNode{newTestNode("c", "in"), newTestNode("a"), newTestNode("b", "in")} {
		_ = g.AddNode(n)
	}
	mustLink(t, g, "a", "b")
	mustLink(t, g, "b", "c")

	got := g.TopoOrder()
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Fatalf("TopoOrder = %v, want %v", got, want)
	}
}

func TestUpdatePropagatesInputs(t *testing.T) {
	g := chain(t)
	if err := g.Update(context.Background(), computeAll(g, nil)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	c, _ := g.Node("c")
	if got := c.Output("out").Data[0]; got != 3 {
		t.Fatalf("c = %v, want 3", got)
	}
	if d := g.Dirty(); len(d) != 0 {
		t.Fatalf("dirty after update: %v", d)
	}
}

func TestUpdateFromOnlyVisitsDescendants(t *testing.T) {
	g := chain(t)
	ctx := context.Background()
	_ = g.Update(ctx, computeAll(g, nil))

	var visited []string
	if err := g.UpdateFrom(ctx, "b", computeAll(g, &visited)); err != nil {
		t.Fatalf("UpdateFrom: %v", err)
	}
	if want := []string{"b", "c"}; !slices.Equal(visited, want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
}

func TestUpdateCollectsFailures(t *testing.T) {
	g := chain(t)
	boom := errors.New("boom")
	var visited []string
	err := g.Update(context.Background(), func(ctx context.Context, id string) error {
		visited = append(visited, id)
		if id == "a" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want joined boom, got %v", err)
	}
	if len(visited) != 3 {
		t.Fatalf("failure halted the pass: visited %v", visited)
	}
}

func TestFrozenNodesAreSkipped(t *testing.T) {
	g := chain(t)
	ctx := context.Background()
	if err := g.SetFrozen("b", true); err != nil {
		t.Fatal(err)
	}
	var visited []string
	_ = g.Update(ctx, computeAll(g, &visited))
	if slices.Contains(visited, "b") {
		t.Fatalf("frozen node computed: %v", visited)
	}
	_ = g.SetFrozen("b", false)
	if !g.IsDirty("b") || !g.IsDirty("c") {
		t.Fatal("thawing should mark node and descendants dirty")
	}
}

func TestRemoveNodeDropsLinks(t *testing.T) {
	g := chain(t)
	_ = g.Update(context.Background(), computeAll(g, nil))

	if err := g.RemoveNode("b"); err != nil {
		t.Fatal(err)
	}
	if len(g.Links()) != 0 {
		t.Fatalf("links left: %v", g.Links())
	}
	if !g.IsDirty("c") {
		t.Fatal("downstream node should be dirty")
	}
	c, _ := g.Node("c")
	if c.(*testNode).in["in"] != nil {
		t.Fatal("input should be cleared")
	}
	if err := g.RemoveNode("b"); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestRenameNode(t *testing.T) {
	g := chain(t)
	if err := g.RenameNode("b", "mid"); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Node("b"); ok {
		t.Fatal("old id still present")
	}
	n, ok := g.Node("mid")
	if !ok || n.ID() != "mid" {
		t.Fatal("renamed node missing")
	}
	if got := g.Children("a"); !slices.Equal(got, []string{"mid"}) {
		t.Fatalf("children of a = %v", got)
	}
	if err := g.RenameNode("a", "c"); !errors.Is(err, ErrDuplicateNodeID) {
		t.Fatalf("rename onto existing id: %v", err)
	}
}
