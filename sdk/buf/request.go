package buf

import (
	"github.com/zintix-labs/gridlab/spec"
)

// SampleRequest 是引擎內部的取樣請求。
//
// 這裡只承載解析完成的數值，不做任何合法性校驗；
// 合法性（形狀上限、權重非負、EID 是否存在）由上層（Device/Runtime）決定。
type SampleRequest struct {
	UID         string      // 唯一識別碼（追蹤用，可空）
	EngineName  string      // 目標引擎名稱
	EngineID    spec.EID    // 目標引擎編號
	Rows        int         // 分佈列數
	Cols        int         // 每列類別數
	Samples     int         // 每列樣本數（0 = 用引擎的 default_samples）
	Replacement bool        // 放回式與否
	Preset      string      // 指名 bank 內的預設矩陣；空字串表示使用 Weights
	Weights     []float64   // row-major 攤平的權重矩陣（容量重用）
	StartState  *StartState // nil = 新局；帶快照 = 回放/續抽
}

// StartState 是由業務端帶入的「引擎可恢復狀態」。
// 引擎的輸入只接受起始快照；結束快照只會出現在回應中。
type StartState struct {
	StartStateSnap []byte
}

// SetShape 設定權重矩陣形狀並回傳可供填寫的切片，
// 已配置的底層陣列會被重用。
func (r *SampleRequest) SetShape(rows, cols int) []float64 {
	r.Rows = rows
	r.Cols = cols
	need := rows * cols
	if cap(r.Weights) < need {
		r.Weights = make([]float64, need)
	}
	r.Weights = r.Weights[:need]
	return r.Weights
}

// Reset 重置請求內容，保留已配置的權重容量。
func (r *SampleRequest) Reset() {
	r.UID = ""
	r.EngineName = ""
	r.EngineID = 0
	r.Rows = 0
	r.Cols = 0
	r.Samples = 0
	r.Replacement = false
	r.Preset = ""
	r.Weights = r.Weights[:0]
	r.StartState = nil
}
