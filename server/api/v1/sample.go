package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

func (c *SampleHandler) Sample(w http.ResponseWriter, q *http.Request) {
	// 請求方法、結構體校驗
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := dto.DecodeSampleRequest(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// 請求解析完成，設置超時 context
	ctx := q.Context()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 開始取樣
	result, err := c.rt.Sample(ctx, req)
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

// ============================================================
// ** SampleHandler **
// ============================================================

type SampleHandler struct {
	rt *gridlab.EngineRuntime
}

func NewSampleHandler(sCfg *svrcfg.SvrCfg) (*SampleHandler, error) {
	rt, err := sCfg.Gridlab.BuildRuntime(sCfg.DeviceBufSize)
	if err != nil {
		return nil, errs.Wrap(err, "build sample handler error")
	}
	return &SampleHandler{rt: rt}, nil
}

// Runtime 暴露 handler 持有的 EngineRuntime。
// 組裝端用它把 runtime 的關閉接進 server 生命週期；handler 本身不負責 Close。
func (c *SampleHandler) Runtime() *gridlab.EngineRuntime {
	return c.rt
}
