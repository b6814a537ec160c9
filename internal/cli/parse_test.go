package cli

import (
	"testing"

	"github.com/matzehuels/stratum/pkg/compositor"
)

func TestParseShape(t *testing.T) {
	tests := []struct {
		in      string
		want    [2]int
		wantErr bool
	}{
		{"8x8", [2]int{8, 8}, false},
		{"256X128", [2]int{256, 128}, false},
		{"1x8", [2]int{}, true},
		{"8", [2]int{}, true},
		{"axb", [2]int{}, true},
	}
	for _, tt := range tests {
		got, err := parseShape(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseShape(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseShape(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTiling(t *testing.T) {
	if got, err := parseTiling("2x3"); err != nil || got != [2]int{2, 3} {
		t.Errorf("parseTiling(2x3) = %v, %v", got, err)
	}
	for _, in := range []string{"0x1", "2", "x"} {
		if _, err := parseTiling(in); err == nil {
			t.Errorf("parseTiling(%q) expected error", in)
		}
	}
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("1.5, -2")
	if err != nil || p.X != 1.5 || p.Y != -2 {
		t.Errorf("parsePoint = %+v, %v", p, err)
	}
	if _, err := parsePoint("1;2"); err == nil {
		t.Error("expected error for missing comma")
	}
}

func TestParseSourceRef(t *testing.T) {
	tests := []struct {
		in      string
		want    compositor.SourceRef
		wantErr bool
	}{
		{"base/height", compositor.SourceRef{Layer: "base", Node: "height", Port: "output"}, false},
		{"base/Add#1.output", compositor.SourceRef{Layer: "base", Node: "Add#1", Port: "output"}, false},
		{"base/n.custom", compositor.SourceRef{Layer: "base", Node: "n", Port: "custom"}, false},
		{"base", compositor.SourceRef{}, true},
		{"/n", compositor.SourceRef{}, true},
		{"base/", compositor.SourceRef{}, true},
	}
	for _, tt := range tests {
		got, err := parseSourceRef(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSourceRef(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSourceRef(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseAttrs(t *testing.T) {
	got, err := parseAttrs([]string{"value=2.5", "on=true", "tag=a/b/c", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	if got["value"] != 2.5 {
		t.Errorf("value = %v", got["value"])
	}
	if got["on"] != true {
		t.Errorf("on = %v", got["on"])
	}
	if got["tag"] != "a/b/c" {
		t.Errorf("tag = %v", got["tag"])
	}
	if got["empty"] != "" {
		t.Errorf("empty = %v", got["empty"])
	}
	if _, err := parseAttrs([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
	if _, err := parseAttrs([]string{"=1"}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestParsePortRef(t *testing.T) {
	n, p, err := parsePortRef("Add#1.input")
	if err != nil || n != "Add#1" || p != "input" {
		t.Errorf("parsePortRef = %q %q %v", n, p, err)
	}
	for _, in := range []string{"node", ".port", "node."} {
		if _, _, err := parsePortRef(in); err == nil {
			t.Errorf("parsePortRef(%q) expected error", in)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"":          "dot",
		"out.dot":   "dot",
		"out.SVG":   "svg",
		"graph.txt": "dot",
	}
	for in, want := range tests {
		if got := formatFromPath(in); got != want {
			t.Errorf("formatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
