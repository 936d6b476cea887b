// Package bbo defines the top-of-book event and feature-vector schema
// shared by the batch (feature) and streaming (streamfeature) builders.
package bbo

// Event is a single top-of-book quote update. ts_event is monotone
// non-decreasing within one symbol's stream; (TsEvent, Seq) is the stable
// total order across the whole system (replay, outcomes, revalidation).
//
// Timestamps and sequence numbers are carried as int64 deliberately: both
// can exceed the 53-bit mantissa a float64 can represent exactly, so every
// comparison and sort in this codebase compares int64 directly rather than
// converting through float64.
type Event struct {
	TsEvent  int64 // milliseconds since epoch
	Seq      int64
	BidPrice float64
	AskPrice float64
	BidQty   float64
	AskQty   float64
	Symbol   string
}

// Less implements the (ts_event, seq) total order used throughout the
// pipeline: the replay runner's ordering check and the batch builder's
// stable sort both compare events this way.
func Less(a, b Event) bool {
	if a.TsEvent != b.TsEvent {
		return a.TsEvent < b.TsEvent
	}
	return a.Seq < b.Seq
}

// FeatureVector is the fixed v1 feature/label schema produced per accepted
// row by the batch FeatureBuilderV1. The streaming feature registry does
// not use this type; it emits name-to-value maps of its own features.
// Column order here is the wire-visible order from spec.md §6 and must not
// be reordered.
type FeatureVector struct {
	TsEvent     int64   `json:"ts_event"`
	Mid         float64 `json:"f_mid"`
	Spread      float64 `json:"f_spread"`
	SpreadBps   float64 `json:"f_spread_bps"`
	Imbalance   float64 `json:"f_imbalance"`
	Microprice  float64 `json:"f_microprice"`
	Ret1s       float64 `json:"f_ret_1s"`
	Ret5s       float64 `json:"f_ret_5s"`
	Ret10s      float64 `json:"f_ret_10s"`
	Ret30s      float64 `json:"f_ret_30s"`
	Vol10s      float64 `json:"f_vol_10s"`
	LabelDir10s int32   `json:"label_dir_10s"`
}

// Columns is the fixed, wire-visible column order for the Feature Parquet
// v1 schema (spec.md §6). Exported so the parquet sidecar writer and
// meta.json emitter can reference one source of truth.
var Columns = []string{
	"ts_event", "f_mid", "f_spread", "f_spread_bps", "f_imbalance",
	"f_microprice", "f_ret_1s", "f_ret_5s", "f_ret_10s", "f_ret_30s",
	"f_vol_10s", "label_dir_10s",
}
