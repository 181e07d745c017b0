package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/server/httperr"
)

// Presets 回傳 Catalog summary（引擎清單與 launch 形狀）。
// 唯讀、無副作用，供客戶端探索可用的 eid/engine。
func Presets(gl *gridlab.Gridlab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sum, err := gl.Summary()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	}
}

// Metrics 回傳每座引擎 device pool 的運行指標（借出中、補機、panic 計數等）。
func (c *SampleHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c.rt.Metrics())
}
