package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// DistStat 離線統計輸入。
// draws 每輪一筆，內容為 row-major 的 1-based category；
// 長度須為 rows 的整數倍（rows*samples），各輪 samples 可不同。
type DistStat struct {
	EngineName string    `json:"engine_name"`
	EID        spec.EID  `json:"eid"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Alpha      float64   `json:"alpha"`
	Weights    []float64 `json:"weights"`
	Draws      [][]int   `json:"draws"`
}

func Stat(w http.ResponseWriter, r *http.Request) {
	// Post方法限定
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 嘗試解析
	dst := new(DistStat)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if dst.Rows < 1 || dst.Cols < 1 {
		http.Error(w, "rows/cols must > 0", http.StatusBadRequest)
		return
	}
	if len(dst.Weights) != dst.Rows*dst.Cols {
		http.Error(w, "weights length must be rows*cols", http.StatusBadRequest)
		return
	}
	round := len(dst.Draws)
	if round < 1 {
		http.Error(w, "round must > 0", http.StatusBadRequest)
		return
	}

	// 重播外部抽樣結果進統計器
	st := stats.NewVerifyReport(dst.EngineName, dst.EID, dst.Weights, dst.Rows, dst.Cols, dst.Alpha)
	for i := 0; i < round; i++ {
		cats := dst.Draws[i]
		if len(cats) == 0 || len(cats)%dst.Rows != 0 {
			http.Error(w, "draws length must be a multiple of rows", http.StatusBadRequest)
			return
		}
		samples := len(cats) / dst.Rows
		for idx, cat := range cats {
			st.Record(idx/samples, cat)
		}
	}
	st.Summary.Rounds = round
	st.Done()
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
}
