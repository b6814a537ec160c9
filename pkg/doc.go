// Package pkg provides the core libraries for Stratum terrain compositing.
//
// # Overview
//
// Stratum builds a heightmap from a stack of layers. Each layer owns a graph
// of field-producing nodes placed in a rectangular frame. Layers exchange
// fields through broadcast tags: a Broadcast node publishes its input under
// a tag, and a Receive node in a higher layer resamples that snapshot into
// its own frame. The export flattens chosen node outputs into one raster.
//
// # Architecture
//
// The data flow through Stratum:
//
//	project document (JSON)
//	         ↓
//	    [registry] (replays layers, order and export settings)
//	         ↓
//	    [layer] + [dag] (per-layer node graphs, dirty tracking)
//	         ↓
//	    [broadcast] (tag table shared by all layers)
//	         ↓
//	    [compositor] (resolve sources, flatten, encode)
//	         ↓
//	16-bit elevation PNG + hillshade preview
//
// # Quick Start
//
// Build a two-layer scene and export it:
//
//	reg := registry.New()
//	base, _ := reg.NewLayer(ctx, "base")
//	base.AddNode(ctx, node.KindConstant, "height", node.Attrs{"value": 2.0})
//	base.AddNode(ctx, node.KindBroadcast, "pub", nil)
//	base.AddLink(dag.Link{From: "height", FromPort: "output", To: "pub", ToPort: "input"})
//
//	top, _ := reg.NewLayer(ctx, "top")
//	top.AddNode(ctx, node.KindReceive, "rx", nil)
//	top.Subscribe("rx", "base/Broadcast/pub")
//
//	_ = reg.Update(ctx)
//	res, err := reg.Export(ctx, compositor.Spec{
//	    Shape:   [2]int{256, 256},
//	    Tiling:  [2]int{1, 1},
//	    Path:    "terrain.png",
//	    Sources: []compositor.SourceRef{{Layer: "top", Node: "rx", Port: "output"}},
//	})
//
// # Main Packages
//
// ## Model
//
// [frame], [field] - Rectangular placements and the scalar grids nodes
// produce, including resampling, flattening and PNG encoding.
//
// [dag] - Port-linked acyclic node graph with dirty tracking and
// topological evaluation.
//
// [node] - Node kinds (Constant, Gradient, Add, Scale, Clamp, Broadcast,
// Receive) and the factory that builds them by name.
//
// [layer], [broadcast], [registry] - The layer stack, the tag table and the
// registry that owns both and enforces the bottom-to-top read order.
//
// [compositor] - Export source resolution and the flatten pass.
//
// ## Persistence
//
// [document] - The versioned JSON project format with a lenient reader.
//
// [store] - Named project storage on the filesystem or in MongoDB.
//
// [cache] - Artifact caching on the filesystem or in Redis.
//
// [config] - TOML/YAML application settings.
//
// ## Orchestration
//
// [pipeline] - Load, replay, export and topology with caching, shared by the
// CLI and the server.
//
// [render/topology] - Graphviz diagrams of the layer and node graph.
//
// [server] - JSON API, websocket event stream and metrics endpoint.
//
// [event], [observability], [metrics] - Lifecycle events, instrumentation
// hooks and their Prometheus collectors.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/registry/...           # Specific package
//	STRATUM_REDIS_ADDR=localhost:6379 STRATUM_MONGO_URI=mongodb://localhost go test ./pkg/cache/... ./pkg/store/...
//
// [frame]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/frame
// [field]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/field
// [dag]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/dag
// [node]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/node
// [layer]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/layer
// [broadcast]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/broadcast
// [registry]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/registry
// [compositor]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/compositor
// [document]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/document
// [store]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/store
// [cache]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/config
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/pipeline
// [render/topology]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/render/topology
// [server]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/server
// [event]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/event
// [observability]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/observability
// [metrics]: https://pkg.go.dev/github.com/matzehuels/stratum/pkg/metrics
package pkg
