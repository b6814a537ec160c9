package document

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/node"
)

type object map[string]json.RawMessage

// reader decodes a document key by key so that absent keys can be reported
// individually instead of silently zeroed.
type reader struct {
	logger  *log.Logger
	missing []string
}

// Read decodes a document. Malformed JSON or a key of the wrong type is an
// error; an absent required key is logged, recorded in Document.Missing and
// defaulted.
func Read(r io.Reader, logger *log.Logger) (*Document, error) {
	if logger == nil {
		logger = log.Default()
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	rd := &reader{logger: logger}
	top, err := rd.object(raw, "document")
	if err != nil {
		return nil, err
	}

	doc := New()
	var version string
	if ok, err := rd.get(top, "", "version", &version); err != nil {
		return nil, err
	} else if ok && version != Version {
		logger.Warn("document version mismatch", "got", version, "want", Version)
	}
	if _, err := rd.get(top, "", "id_count", &doc.IDCount); err != nil {
		return nil, err
	}

	var layers map[string]json.RawMessage
	if _, err := rd.get(top, "", "graph_nodes", &layers); err != nil {
		return nil, err
	}
	for key, data := range layers {
		l, err := rd.layer(key, data)
		if err != nil {
			return nil, err
		}
		doc.GraphNodes[key] = l
	}

	ok, err := rd.get(top, "", "graph_order", &doc.GraphOrder)
	if err != nil {
		return nil, err
	}
	if !ok || doc.GraphOrder == nil {
		doc.GraphOrder = doc.LayerIDs()
	}

	if data, ok := top["export_param"]; ok {
		if err := rd.export(data, &doc.ExportParam); err != nil {
			return nil, err
		}
	} else {
		rd.miss("export_param")
	}

	slices.Sort(rd.missing)
	doc.Missing = rd.missing
	return doc, nil
}

func (rd *reader) layer(key string, data json.RawMessage) (Layer, error) {
	path := "graph_nodes." + key
	obj, err := rd.object(data, path)
	if err != nil {
		return Layer{}, err
	}
	l := Layer{
		ID:          key,
		ModelConfig: node.DefaultConfig(),
		Size:        [2]float64{1, 1},
		Nodes:       []Node{},
		Links:       []Link{},
	}
	if _, err := rd.get(obj, path, "id", &l.ID); err != nil {
		return l, err
	}
	if _, err := rd.get(obj, path, "id_count", &l.IDCount); err != nil {
		return l, err
	}
	if data, ok := obj["model_config"]; ok {
		if err := rd.modelConfig(data, path+".model_config", &l.ModelConfig); err != nil {
			return l, err
		}
	} else {
		rd.miss(path + ".model_config")
	}
	for key, dst := range map[string]*[2]float64{"origin": &l.Origin, "size": &l.Size} {
		if _, err := rd.get(obj, path, key, dst); err != nil {
			return l, err
		}
	}
	if _, err := rd.get(obj, path, "rotation_angle", &l.RotationAngle); err != nil {
		return l, err
	}

	var nodes []json.RawMessage
	if _, err := rd.get(obj, path, "nodes", &nodes); err != nil {
		return l, err
	}
	for i, data := range nodes {
		n, err := rd.node(fmt.Sprintf("%s.nodes[%d]", path, i), data)
		if err != nil {
			return l, err
		}
		l.Nodes = append(l.Nodes, n)
	}

	var links []json.RawMessage
	if _, err := rd.get(obj, path, "links", &links); err != nil {
		return l, err
	}
	for i, data := range links {
		lp := fmt.Sprintf("%s.links[%d]", path, i)
		lo, err := rd.object(data, lp)
		if err != nil {
			return l, err
		}
		var lk Link
		for key, dst := range map[string]*string{
			"node_id_from": &lk.NodeIDFrom, "port_id_from": &lk.PortIDFrom,
			"node_id_to": &lk.NodeIDTo, "port_id_to": &lk.PortIDTo,
		} {
			if _, err := rd.get(lo, lp, key, dst); err != nil {
				return l, err
			}
		}
		l.Links = append(l.Links, lk)
	}
	return l, nil
}

func (rd *reader) node(path string, data json.RawMessage) (Node, error) {
	obj, err := rd.object(data, path)
	if err != nil {
		return Node{}, err
	}
	var n Node
	if _, err := rd.get(obj, path, "label", &n.Label); err != nil {
		return n, err
	}
	if _, err := rd.get(obj, path, "id", &n.ID); err != nil {
		return n, err
	}
	if raw, ok := obj["frozen"]; ok {
		if err := json.Unmarshal(raw, &n.Frozen); err != nil {
			return n, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s.frozen", path)
		}
	}
	for key, raw := range obj {
		if key == "label" || key == "id" || key == "frozen" {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return n, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s.%s", path, key)
		}
		if n.Attrs == nil {
			n.Attrs = node.Attrs{}
		}
		n.Attrs[key] = v
	}
	return n, nil
}

func (rd *reader) modelConfig(data json.RawMessage, path string, cfg *node.Config) error {
	obj, err := rd.object(data, path)
	if err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "shape", &cfg.Shape); err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "tiling", &cfg.Tiling); err != nil {
		return err
	}
	_, err = rd.get(obj, path, "overlap", &cfg.Overlap)
	return err
}

func (rd *reader) export(data json.RawMessage, ep *ExportParam) error {
	const path = "export_param"
	obj, err := rd.object(data, path)
	if err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "shape", &ep.Shape); err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "tiling", &ep.Tiling); err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "overlap", &ep.Overlap); err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "path", &ep.Path); err != nil {
		return err
	}
	if _, err := rd.get(obj, path, "sources", &ep.Sources); err != nil {
		return err
	}
	if ep.Sources == nil {
		ep.Sources = []SourceRef{}
	}
	return nil
}

func (rd *reader) object(data json.RawMessage, path string) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s: expected object", path)
	}
	return obj, nil
}

// get decodes obj[key] into dst. It reports false when the key is absent,
// leaving dst untouched.
func (rd *reader) get(obj object, path, key string, dst any) (bool, error) {
	full := key
	if path != "" {
		full = path + "." + key
	}
	data, ok := obj[key]
	if !ok {
		rd.miss(full)
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", full)
	}
	return true, nil
}

func (rd *reader) miss(path string) {
	rd.missing = append(rd.missing, path)
	rd.logger.Warn("missing key, using default", "key", path, "code", errors.ErrCodeMissingKey)
}
