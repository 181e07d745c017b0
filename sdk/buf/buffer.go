package buf

import (
	"github.com/zintix-labs/gridlab/spec"
)

const capResultGrow int = 1024

// SampleResult 保存一次完整取樣的結果。
//
// 此結構由 Device 重用（熱路徑），每次取樣會覆寫內容；
// 需要保留結果時請在離開臨界區前轉成 DTO 或自行複製。
type SampleResult struct {
	EngineName  string      // 引擎名稱（觀測/日誌用）
	EngineID    spec.EID    // 引擎 ID（Catalog 內唯一）
	Rows        int         // 本次請求的分佈列數
	Cols        int         // 每列類別數
	Samples     int         // 每列樣本數
	Replacement bool        // 放回式與否
	Categories  []int       // 長度 rows*samples，1-based 類別編號，row-major
	State       ResultState // 取樣前後的引擎狀態快照
}

// ResultState 攜帶一次取樣前後的 StateArray 快照，
// 供回放（replay）與續抽（resume）使用。
type ResultState struct {
	StartStateSnap []byte
	AfterStateSnap []byte
}

// NewSampleResult 建立指定引擎的 SampleResult 實體，並預先配置基本容量。
func NewSampleResult(es *spec.EngineSetting) *SampleResult {
	return &SampleResult{
		EngineName: es.EngineName,
		EngineID:   es.EngineID,
		Categories: make([]int, 0, capResultGrow),
	}
}

// SetShape 設定本次結果的形狀並確保 Categories 容量足夠，
// 已配置的底層陣列會被重用。
func (s *SampleResult) SetShape(rows, cols, samples int, replacement bool) {
	s.Rows = rows
	s.Cols = cols
	s.Samples = samples
	s.Replacement = replacement

	need := rows * samples
	if cap(s.Categories) < need {
		s.Categories = make([]int, need, need+capResultGrow)
	}
	s.Categories = s.Categories[:need]
}

// RowCategories 取得第 row 列的樣本切片（共享底層陣列，請勿保留）。
func (s *SampleResult) RowCategories(row int) []int {
	return s.Categories[row*s.Samples : (row+1)*s.Samples]
}

// Reset 重置累積資料，保留已配置的內部切片容量。
func (s *SampleResult) Reset() {
	s.Rows = 0
	s.Cols = 0
	s.Samples = 0
	s.Replacement = false
	s.Categories = s.Categories[:0]
	s.State.StartStateSnap = nil
	s.State.AfterStateSnap = nil
}
