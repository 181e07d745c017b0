package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

type VerifyHandler struct {
	Gridlab *gridlab.Gridlab
}

func NewVerifyHandler(gl *gridlab.Gridlab) (*VerifyHandler, error) {
	return &VerifyHandler{Gridlab: gl}, nil
}

// verifyRequestBody 是 /v1/verify 的輸入。
// weights 為 row-major 攤平矩陣（長度 rows*cols），空列會在統計前被引擎正規化。
type verifyRequestBody struct {
	EID         spec.EID  `json:"eid"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Samples     int       `json:"samples"`
	Replacement bool      `json:"replacement"`
	Weights     []float64 `json:"weights"`
	Round       int       `json:"round"`
	Workers     int       `json:"workers"`
	Seed        *int64    `json:"seed,omitempty"`
}

type verifyResponse struct {
	Stat     *stats.VerifyReport `json:"statistic"`
	UsedTime int64               `json:"used_ms"`
}

func (vh *VerifyHandler) Verify(w http.ResponseWriter, q *http.Request) {
	req := new(verifyRequestBody)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if q.Method == http.MethodGet {
		if err := decodeVerifyQuery(q, req); err != nil {
			httperr.Errs(w, err)
			return
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務檢驗
	if _, ok := vh.Gridlab.EntryById(req.EID); !ok {
		httperr.Errs(w, errs.NewWarn("eid not found"))
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
	vf, err := vh.Gridlab.NewVerifierWithSeed(req.EID, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自gridlab 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build verifier err: %d", req.EID)))
		return
	}
	st, used, err := vf.VerifyMP(req.Weights, req.Rows, req.Cols, req.Samples, req.Replacement, req.Round, req.Workers, false)
	if err != nil {
		// 這裡的錯誤來自verifier 尊重錯誤分級
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

// decodeVerifyQuery 解析 GET query string。
// GET 僅建議用於小矩陣的手動測試；weights 以逗號分隔。
func decodeVerifyQuery(q *http.Request, req *verifyRequestBody) error {
	qs := q.URL.Query()

	// eid
	if s := qs.Get("eid"); s != "" {
		u, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return errs.NewWarn("eid must be non-negative integer")
		}
		req.EID = spec.EID(u)
	} else {
		return errs.NewWarn("eid is required")
	}

	// rows / cols
	if s := qs.Get("rows"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("rows must be integer")
		}
		req.Rows = u
	} else {
		return errs.NewWarn("rows is required")
	}
	if s := qs.Get("cols"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("cols must be integer")
		}
		req.Cols = u
	} else {
		return errs.NewWarn("cols is required")
	}

	// samples / replacement（可缺省，由引擎預設補齊）
	if s := qs.Get("samples"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("samples must be integer")
		}
		req.Samples = u
	}
	if s := qs.Get("replacement"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errs.NewWarn("replacement must be bool")
		}
		req.Replacement = b
	}

	// weights（CSV）
	if s := qs.Get("weights"); s != "" {
		parts := strings.Split(s, ",")
		ws := make([]float64, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return errs.NewWarn("weights must be comma separated floats")
			}
			ws = append(ws, v)
		}
		req.Weights = ws
	} else {
		return errs.NewWarn("weights is required")
	}

	// round
	if s := qs.Get("round"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("round must be integer")
		}
		req.Round = u
	} else {
		return errs.NewWarn("round is required")
	}

	// workers
	if s := qs.Get("workers"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("workers must be integer")
		}
		req.Workers = u
	}

	// seed
	if s := qs.Get("seed"); s != "" {
		u, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errs.NewWarn("seed must be int64")
		}
		v := u
		req.Seed = &v
	}
	return nil
}
