package v1

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// logNormalBody 是 /v1/lognormalfit 的輸入。
// mean/stddev 為目標分布的線性空間動差，非底層常態參數。
type logNormalBody struct {
	EID     spec.EID `json:"eid"`
	Count   int      `json:"count"`
	Mean    float64  `json:"mean"`
	Stddev  float64  `json:"stddev"`
	Workers int      `json:"workers"`
	Seed    *int64   `json:"seed,omitempty"`
}

type logNormalResponse struct {
	Fit      *stats.LogFitReport `json:"statistic"`
	UsedTime int64               `json:"used_ms"`
}

func (vh *VerifyHandler) LogNormal(w http.ResponseWriter, q *http.Request) {
	req := new(logNormalBody)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if q.Method == http.MethodGet {
		if err := decodeLogNormalQuery(q, req); err != nil {
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
	if _, ok := vh.Gridlab.EntryById(req.EID); !ok {
		httperr.Errs(w, errs.NewWarn("eid not found"))
		return
	}
	if req.Count < 1 || req.Count > 100000000 {
		httperr.Errs(w, errs.NewWarn("count must be between 1 to 100,000,000"))
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
		httperr.Errs(w, errs.Wrap(err, "build verifier err"))
		return
	}
	fit, used, err := vf.VerifyLogNormal(req.Count, req.Mean, req.Stddev, req.Workers, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "lognormal verify err"))
		return
	}
	resp := logNormalResponse{
		Fit:      fit,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func decodeLogNormalQuery(q *http.Request, req *logNormalBody) error {
	qs := q.URL.Query()

	if s := qs.Get("eid"); s != "" {
		u, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return errs.NewWarn("eid must be non-negative integer")
		}
		req.EID = spec.EID(u)
	} else {
		return errs.NewWarn("eid is required")
	}

	if s := qs.Get("count"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("count must be integer")
		}
		req.Count = u
	} else {
		return errs.NewWarn("count is required")
	}

	if s := qs.Get("mean"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errs.NewWarn("mean must be float")
		}
		req.Mean = v
	} else {
		return errs.NewWarn("mean is required")
	}

	if s := qs.Get("stddev"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errs.NewWarn("stddev must be float")
		}
		req.Stddev = v
	} else {
		return errs.NewWarn("stddev is required")
	}

	if s := qs.Get("workers"); s != "" {
		u, err := strconv.Atoi(s)
		if err != nil {
			return errs.NewWarn("workers must be integer")
		}
		req.Workers = u
	}

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
