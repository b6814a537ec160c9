package cache

// ExportKeyOpts are the export options that change the flattened output.
type ExportKeyOpts struct {
	Shape   [2]int   `json:"shape"`
	Tiling  [2]int   `json:"tiling"`
	Overlap float64  `json:"overlap"`
	Sources []string `json:"sources"` // "layer/node.port"
	ZScale  float64  `json:"z_scale"`
}

// Keyer derives cache keys.
type Keyer interface {
	// ExportKey keys the encoded elevation and preview of an export.
	ExportKey(docHash string, opts ExportKeyOpts) string

	// TopologyKey keys a rendered topology diagram.
	TopologyKey(docHash, format string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ExportKey returns "export:<sha256(docHash, opts)>".
func (DefaultKeyer) ExportKey(docHash string, opts ExportKeyOpts) string {
	return hashKey("export", docHash, opts)
}

// TopologyKey returns "topology:<format>:<docHash>".
func (DefaultKeyer) TopologyKey(docHash, format string) string {
	return "topology:" + format + ":" + docHash
}

var _ Keyer = DefaultKeyer{}
