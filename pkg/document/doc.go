// Package document reads and writes the persisted registry document.
//
// A document is a single JSON object holding the layer order, the export
// parameters and the full state of every layer:
//
//	{
//	  "version": "1.0",
//	  "id_count": 2,
//	  "graph_order": ["layer_1", "layer_2"],
//	  "export_param": {"shape": [512, 256], "tiling": [1, 1], "overlap": 0.25,
//	                   "path": "out.png", "sources": [{"layer_id": "layer_1",
//	                   "node_id": "Constant#1", "port_id": "output"}]},
//	  "graph_nodes": {
//	    "layer_1": {"id": "layer_1", "id_count": 1,
//	                "model_config": {"shape": [256, 256], "tiling": [1, 1], "overlap": 0.25},
//	                "origin": [0, 0], "size": [1, 1], "rotation_angle": 0,
//	                "nodes": [{"label": "Constant", "id": "Constant#1", "value": 1}],
//	                "links": []}
//	  }
//	}
//
// Node entries carry their parameters inline next to "label" and "id".
// Broadcast records are never persisted; they are regenerated by evaluating
// the layers after loading.
//
// # Missing keys
//
// [Read] is lenient: a required key that is absent is logged as a
// MISSING_KEY warning, recorded in [Document.Missing], and replaced by a
// default. A version other than [Version] is logged and otherwise ignored.
package document
