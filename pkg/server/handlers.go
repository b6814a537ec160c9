package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzehuels/stratum/pkg/buildinfo"
	"github.com/matzehuels/stratum/pkg/compositor"
	"github.com/matzehuels/stratum/pkg/dag"
	"github.com/matzehuels/stratum/pkg/document"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/frame"
	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/pipeline"
	"github.com/matzehuels/stratum/pkg/render/topology"
)

// =============================================================================
// Wire types
// =============================================================================

type frameJSON struct {
	Origin   [2]float64 `json:"origin"`
	Size     [2]float64 `json:"size"`
	Rotation float64    `json:"rotation_angle"`
}

func toFrameJSON(f frame.Frame) frameJSON {
	return frameJSON{
		Origin:   [2]float64{f.Origin.X, f.Origin.Y},
		Size:     [2]float64{f.Size.X, f.Size.Y},
		Rotation: f.Rotation,
	}
}

type nodeJSON struct {
	ID      string     `json:"id"`
	Kind    string     `json:"kind"`
	Attrs   node.Attrs `json:"attrs,omitempty"`
	Inputs  []string   `json:"inputs"`
	Outputs []string   `json:"outputs"`
	Frozen  bool       `json:"frozen,omitempty"`
}

type layerJSON struct {
	ID    string     `json:"id"`
	State string     `json:"state"`
	Frame frameJSON  `json:"frame"`
	Nodes []nodeJSON `json:"nodes,omitempty"`
	Links []dag.Link `json:"links,omitempty"`
}

func toLayerJSON(l *layer.Layer, detailed bool) layerJSON {
	out := layerJSON{ID: l.ID(), State: l.State().String(), Frame: toFrameJSON(l.Frame())}
	if !detailed {
		return out
	}
	for _, n := range l.Nodes() {
		out.Nodes = append(out.Nodes, nodeJSON{
			ID:      n.ID(),
			Kind:    n.Kind(),
			Attrs:   n.Attrs(),
			Inputs:  n.Inputs(),
			Outputs: n.Outputs(),
			Frozen:  l.Graph().IsFrozen(n.ID()),
		})
	}
	out.Links = l.Links()
	return out
}

type healthJSON struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

type errorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	writeJSON(w, errs.HTTPStatus(err), errorJSON{Code: string(code), Message: errs.UserMessage(err)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

// layerParam looks up the {layer} URL parameter. Callers hold s.mu.
func (s *Server) layerParam(r *http.Request) (*layer.Layer, error) {
	id := chi.URLParam(r, "layer")
	l, ok := s.reg.Layer(id)
	if !ok {
		return nil, errs.New(errs.ErrCodeNotFound, "layer %q not found", id)
	}
	return l, nil
}

// recompute runs a registry update after a mutation. Node failures are
// logged; they do not fail the request.
func (s *Server) recompute(r *http.Request) {
	if err := s.reg.Update(r.Context()); err != nil {
		s.logger.Warn("recompute reported errors", "err", err)
	}
}

// =============================================================================
// Document
// =============================================================================

func (s *Server) handleGetDocument(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := s.reg.Serialize()
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if err := document.Write(w, doc); err != nil {
		s.logger.Error("write document", "err", err)
	}
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := document.Read(r.Body, s.logger)
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read document"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deserialize(w, r, doc)
}

func (s *Server) deserialize(w http.ResponseWriter, r *http.Request, doc *document.Document) {
	resp := map[string]any{"missing": doc.Missing}
	if err := s.reg.Deserialize(r.Context(), doc); err != nil {
		resp["warnings"] = err.Error()
	}
	resp["layers"] = s.reg.Order()
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Layers
// =============================================================================

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	detailed := r.URL.Query().Get("detailed") != ""
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []layerJSON{}
	for _, l := range s.reg.Layers() {
		out = append(out, toLayerJSON(l, detailed))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLayerJSON(l, true))
}

type addLayerRequest struct {
	ID    string     `json:"id"`
	Index *int       `json:"index,omitempty"`
	Frame *frameJSON `json:"frame,omitempty"`
}

func (s *Server) handleAddLayer(w http.ResponseWriter, r *http.Request) {
	var req addLayerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var opts []layer.Option
	if req.Frame != nil {
		f := frame.New(frame.Point{X: req.Frame.Origin[0], Y: req.Frame.Origin[1]},
			frame.Point{X: req.Frame.Size[0], Y: req.Frame.Size[1]}, req.Frame.Rotation)
		if err := f.Validate(); err != nil {
			writeError(w, err)
			return
		}
		opts = append(opts, layer.WithFrame(f))
	}
	opts = append(opts, layer.WithFactory(s.reg.Factory()), layer.WithLogger(s.logger))
	l := layer.New(req.ID, s.reg.Config(), opts...)

	index := s.reg.Len()
	if req.Index != nil {
		index = *req.Index
	}
	if _, err := s.reg.InsertLayer(r.Context(), l, req.ID, index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLayerJSON(l, false))
}

type patchLayerRequest struct {
	ID       string      `json:"id,omitempty"`
	Origin   *[2]float64 `json:"origin,omitempty"`
	Size     *[2]float64 `json:"size,omitempty"`
	Rotation *float64    `json:"rotation_angle,omitempty"`
	Index    *int        `json:"index,omitempty"`
}

func (s *Server) handlePatchLayer(w http.ResponseWriter, r *http.Request) {
	var req patchLayerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Origin != nil {
		if err := l.SetOrigin(frame.Point{X: req.Origin[0], Y: req.Origin[1]}); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Size != nil {
		if err := l.SetSize(frame.Point{X: req.Size[0], Y: req.Size[1]}); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Rotation != nil {
		if err := l.SetRotation(*req.Rotation); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Index != nil {
		if err := s.reg.MoveLayer(l.ID(), *req.Index); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.ID != "" && req.ID != l.ID() {
		if err := s.reg.RenameLayer(r.Context(), l.ID(), req.ID); err != nil {
			writeError(w, err)
			return
		}
	}
	s.recompute(r)
	writeJSON(w, http.StatusOK, toLayerJSON(l, false))
}

func (s *Server) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.RemoveLayer(chi.URLParam(r, "layer")); err != nil {
		writeError(w, err)
		return
	}
	s.recompute(r)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Nodes and links
// =============================================================================

type addNodeRequest struct {
	Kind  string     `json:"kind"`
	ID    string     `json:"id,omitempty"`
	Attrs node.Attrs `json:"attrs,omitempty"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := l.AddNode(r.Context(), req.Kind, req.ID, req.Attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type patchNodeRequest struct {
	ID     string     `json:"id,omitempty"`
	Attrs  node.Attrs `json:"attrs,omitempty"`
	Tag    *string    `json:"tag,omitempty"`
	Frozen *bool      `json:"frozen,omitempty"`
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	var req patchNodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "node")

	if len(req.Attrs) > 0 {
		if err := l.SetAttrs(id, req.Attrs); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Tag != nil {
		if err := l.Subscribe(id, *req.Tag); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Frozen != nil {
		if err := l.SetFrozen(id, *req.Frozen); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.ID != "" && req.ID != id {
		if err := l.RenameNode(r.Context(), id, req.ID); err != nil {
			writeError(w, err)
			return
		}
		id = req.ID
	}
	s.recompute(r)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := l.RemoveNode(chi.URLParam(r, "node")); err != nil {
		writeError(w, err)
		return
	}
	s.recompute(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	var link dag.Link
	if err := decode(r, &link); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := l.AddLink(link); err != nil {
		writeError(w, err)
		return
	}
	s.recompute(r)
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) handleRemoveLink(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	to, port := chi.URLParam(r, "node"), chi.URLParam(r, "port")
	if !l.RemoveLink(to, port) {
		writeError(w, errs.New(errs.ErrCodeNotFound, "no link into %s.%s", to, port))
		return
	}
	s.recompute(r)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Order, tags and evaluation
// =============================================================================

type orderJSON struct {
	Order []string `json:"order"`
}

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, orderJSON{Order: s.reg.Order()})
}

func (s *Server) handleSetOrder(w http.ResponseWriter, r *http.Request) {
	var req orderJSON
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.ValidateOrder(req.Order); err != nil {
		writeError(w, err)
		return
	}
	s.reg.SetOrder(req.Order)
	s.recompute(r)
	writeJSON(w, http.StatusOK, orderJSON{Order: s.reg.Order()})
}

type tagJSON struct {
	Tag         string    `json:"tag"`
	Owner       string    `json:"owner"`
	Node        string    `json:"node"`
	Frame       frameJSON `json:"frame"`
	Shape       [2]int    `json:"shape"`
	Generation  uint64    `json:"generation"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *Server) handleTags(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []tagJSON{}
	for _, rec := range s.reg.Table().Records() {
		t := tagJSON{
			Tag:         rec.Tag,
			Owner:       rec.Owner,
			Node:        rec.NodeID,
			Frame:       toFrameJSON(rec.Frame),
			Generation:  rec.Generation,
			PublishedAt: rec.PublishedAt,
		}
		if rec.Data != nil {
			t.Shape = [2]int{rec.Data.NX, rec.Data.NY}
		}
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := map[string]any{"ok": true}
	if err := s.reg.Update(r.Context()); err != nil {
		resp["ok"] = false
		resp["errors"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Export and diagram
// =============================================================================

type exportRequest struct {
	Output  string  `json:"output,omitempty"`
	Shape   [2]int  `json:"shape,omitempty"`
	ZScale  float64 `json:"z_scale,omitempty"`
	Refresh bool    `json:"refresh,omitempty"`
}

type exportResponse struct {
	ID       string        `json:"id"`
	Hash     string        `json:"hash"`
	Cached   bool          `json:"cached"`
	Paths    []string      `json:"paths,omitempty"`
	Duration time.Duration `json:"duration"`
}

// handleExport flattens the registry's export sources. With ?artifact=
// elevation or preview the PNG is returned directly and nothing is written.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.ZScale < 0 {
		writeError(w, errs.New(errs.ErrCodeInvalidInput, "z_scale must be positive"))
		return
	}
	if req.ZScale == 0 {
		req.ZScale = compositor.DefaultZScale
	}
	opts := pipeline.Options{Output: req.Output, Shape: req.Shape, ZScale: req.ZScale, Refresh: req.Refresh, Logger: s.logger}
	artifact := r.URL.Query().Get("artifact")

	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	id := uuid.NewString()
	spec := opts.Spec(s.reg.ExportSpec())
	if spec.Path != "" && artifact == "" {
		if err := errs.ValidatePath(spec.Path); err != nil {
			writeError(w, err)
			return
		}
	}
	hash, err := pipeline.DocumentHash(s.reg.Serialize())
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInternal, err, "hash document"))
		return
	}
	s.logger.Info("export", "id", id, "sources", len(spec.Sources), "shape", spec.Shape)
	arts, cached, err := s.runner.ExportWithCacheInfo(r.Context(), s.reg, hash, spec, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	switch artifact {
	case "":
	case "elevation", "preview":
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(arts[artifact+".png"])
		return
	default:
		writeError(w, errs.New(errs.ErrCodeInvalidInput, "unknown artifact %q", artifact))
		return
	}

	resp := exportResponse{ID: id, Hash: hash, Cached: cached}
	if spec.Path != "" {
		if resp.Paths, err = pipeline.WriteArtifacts(spec.Path, arts); err != nil {
			writeError(w, errs.Wrap(errs.ErrCodeInternal, err, "write artifacts"))
			return
		}
	}
	resp.Duration = time.Since(start)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = topology.FormatDOT
	}
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	s.mu.Lock()
	defer s.mu.Unlock()
	data, _, err := s.runner.Topology(r.Context(), s.reg, format, topology.Options{Detailed: detailed})
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "render graph"))
		return
	}
	switch format {
	case topology.FormatSVG:
		w.Header().Set("Content-Type", "image/svg+xml")
	default:
		w.Header().Set("Content-Type", "text/vnd.graphviz")
	}
	_, _ = w.Write(data)
}
