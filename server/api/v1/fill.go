package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/server/httperr"
)

// Fill 走與 Sample 相同的 runtime/pool 路徑，但目標是對數常態填充。
// 填充結果可能很大（count 上限由引擎設定決定），逐元素串流不值得，
// 一律一次性編碼回傳，超時同樣以 5 秒為限。
func (c *SampleHandler) Fill(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := dto.DecodeFillRequest(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := q.Context()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.rt.Fill(ctx, req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		httperr.Errs(w, err)
		return
	}
}
