package v1

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
)

// verifyByCfgBody 與 verifyRequestBody 相同，但以 cfg 內嵌完整引擎設定，
// 不查 catalog。供尚未上架的引擎設定做收斂驗證。
type verifyByCfgBody struct {
	Cfg         json.RawMessage `json:"cfg"`
	Rows        int             `json:"rows"`
	Cols        int             `json:"cols"`
	Samples     int             `json:"samples"`
	Replacement bool            `json:"replacement"`
	Weights     []float64       `json:"weights"`
	Round       int             `json:"round"`
	Workers     int             `json:"workers"`
	Seed        *int64          `json:"seed,omitempty"`
}

func (vh *VerifyHandler) VerifyByCfg(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 設定檔大小上限 5MB
	q.Body = http.MaxBytesReader(w, q.Body, 5<<20)
	req := new(verifyByCfgBody)
	if err := json.NewDecoder(q.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
		return
	}
	if len(req.Cfg) == 0 {
		httperr.Errs(w, errs.NewWarn("cfg is required"))
		return
	}
	if req.Round < 1 || req.Round > 1000000 {
		httperr.Errs(w, errs.NewWarn("round must be between 1 to 1,000,000"))
		return
	}
	if req.Workers < 1 {
		req.Workers = 1
	}
	if req.Workers > 16 {
		httperr.Errs(w, errs.NewWarn("workers must be between 1 and 16"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	vf, err := vh.Gridlab.NewVerifierByJSON(req.Cfg, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "build verifier by cfg err"))
		return
	}
	st, used, err := vf.VerifyMP(req.Weights, req.Rows, req.Cols, req.Samples, req.Replacement, req.Round, req.Workers, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "verify err"))
		return
	}
	resp := verifyResponse{
		Stat:     st,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
