package feature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// schemaVersion identifies the FeatureBuilderV1 formula set. Bump this, not
// the struct tags, whenever a formula changes — consumers key cached
// feature tables on this hash to detect stale data.
const schemaVersion = "v1"

// ConfigHash returns a stable identifier for the exact set of formulas and
// window sizes BuildV1 uses, so downstream stores can detect when cached
// feature output was produced by a different formula revision.
func ConfigHash() string {
	canonical := fmt.Sprintf(
		"version=%s;cold_start_ms=%d;label_horizon_ms=%d;vol_window_ms=%d;return_windows_ms=%v;"+
			"mid=avg(bid,ask);imbalance=(bid_qty-ask_qty)/(bid_qty+ask_qty);"+
			"microprice=(bid*ask_qty+ask*bid_qty)/(bid_qty+ask_qty);ret=log(mid_t/mid_t-w)",
		schemaVersion, coldStartMs, labelHorizon, volWindowMs, returnWindowsMs,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
