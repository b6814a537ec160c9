package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/node"
)

// Version is written into every document.
const Version = "1.0"

// Document is the persisted form of a registry.
type Document struct {
	Version     string           `json:"version"`
	IDCount     int              `json:"id_count"`
	GraphOrder  []string         `json:"graph_order"`
	ExportParam ExportParam      `json:"export_param"`
	GraphNodes  map[string]Layer `json:"graph_nodes"`

	// Missing lists the dotted paths of required keys absent on read.
	Missing []string `json:"-"`
}

// ExportParam is the persisted export specification.
type ExportParam struct {
	Shape   [2]int      `json:"shape"`
	Tiling  [2]int      `json:"tiling"`
	Overlap float64     `json:"overlap"`
	Path    string      `json:"path"`
	Sources []SourceRef `json:"sources"`
}

// SourceRef names one export input.
type SourceRef struct {
	LayerID string `json:"layer_id"`
	NodeID  string `json:"node_id"`
	PortID  string `json:"port_id"`
}

// Layer is the persisted state of one layer.
type Layer struct {
	ID            string      `json:"id"`
	IDCount       int         `json:"id_count"`
	ModelConfig   node.Config `json:"model_config"`
	Origin        [2]float64  `json:"origin"`
	Size          [2]float64  `json:"size"`
	RotationAngle float64     `json:"rotation_angle"`
	Nodes         []Node      `json:"nodes"`
	Links         []Link      `json:"links"`
}

// Node is a persisted node: its kind label, id and inline parameters.
// Frozen nodes carry "frozen": true; the key is omitted otherwise.
type Node struct {
	Label  string
	ID     string
	Frozen bool
	Attrs  node.Attrs
}

// MarshalJSON writes label and id next to the parameters.
func (n Node) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Attrs)+3)
	maps.Copy(m, n.Attrs)
	m["label"] = n.Label
	m["id"] = n.ID
	if n.Frozen {
		m["frozen"] = true
	}
	return json.Marshal(m)
}

// Link is a persisted intra-layer link.
type Link struct {
	NodeIDFrom string `json:"node_id_from"`
	PortIDFrom string `json:"port_id_from"`
	NodeIDTo   string `json:"node_id_to"`
	PortIDTo   string `json:"port_id_to"`
}

// New returns an empty document with default export parameters.
func New() *Document {
	cfg := node.DefaultConfig()
	return &Document{
		Version:    Version,
		GraphOrder: []string{},
		ExportParam: ExportParam{
			Shape:   cfg.Shape,
			Tiling:  cfg.Tiling,
			Overlap: cfg.Overlap,
			Sources: []SourceRef{},
		},
		GraphNodes: map[string]Layer{},
	}
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Marshal returns the encoded document.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the SHA-256 of the encoded document as hex. Layers are
// written in key order, so equal documents hash equally.
func Hash(doc *Document) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Export writes doc to path.
func Export(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Import reads the document at path. See [Read].
func Import(path string, logger *log.Logger) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, logger)
}

// LayerIDs returns the ids in GraphNodes, sorted.
func (d *Document) LayerIDs() []string {
	return slices.Sorted(maps.Keys(d.GraphNodes))
}
