package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/gridlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// VerifyReport 抽樣收斂統計報告
//
// 以 row 為單位累積各 category 的命中次數，Done 之後才會計算
// 頻率、卡方與 p-value
type VerifyReport struct {
	Summary *SummaryReport `json:"Summary"`
	Tally   *TallyReport   `json:"Tally"`
	Fit     *FitReport     `json:"Fit,omitzero"`
	isDone  bool
}

type SummaryReport struct {
	EngineName   string   `json:"EngineName"`
	EngineID     spec.EID `json:"EngineID"`
	Rows         int      `json:"Rows"`
	Cols         int      `json:"Cols"`
	Alpha        float64  `json:"Alpha"`
	Rounds       int      `json:"Rounds"`
	TotalDraws   int      `json:"TotalDraws"`
	InvalidDraws int      `json:"InvalidDraws"`
	ChiSquare    float64  `json:"ChiSquare"` // 各 row 卡方合併
	PValue       float64  `json:"PValue"`    // 合併卡方對應的 p-value
	MaxAbsErr    float64  `json:"MaxAbsErr"`
	PassRows     int      `json:"PassRows"`
	FailRows     int      `json:"FailRows"`
	DegenRows    int      `json:"DegenRows"`
	PassRate     float64  `json:"PassRate"`
	PassCI       CI       `json:"PassCI"`
}

// TallyReport 命中次數統計
//
// 紀錄時只處理 int 計數，避免熱路徑上的轉型成本。Done() 會將結果整理填入 Fit
type TallyReport struct {
	Expected []float64 `json:"Expected"` // rows*cols 正規化機率，零質量 row 維持全零
	Counts   []int     `json:"Counts"`   // rows*cols
	RowDraws []int     `json:"RowDraws"` // 每 row 有效抽樣數
	Invalid  []int     `json:"Invalid"`  // 每 row 超界 category 次數
}

// FitReport 每 row 擬合結果
type FitReport struct {
	Freq       []float64 `json:"Freq"` // rows*cols 實測頻率
	ChiSquare  []float64 `json:"ChiSquare"`
	PValue     []float64 `json:"PValue"`
	MaxAbsErr  []float64 `json:"MaxAbsErr"`
	Degenerate []bool    `json:"Degenerate"`
	Pass       []bool    `json:"Pass"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// NewVerifyReport 以權重矩陣建立報告
//
// weights 為 rows*cols 的 row-major 權重，內部會做 L1 正規化當作期望機率；
// 全零 row 視為 degenerate，引擎約定其所有抽樣都落在 category 1。
// alpha <= 0 時套用預設 0.01
func NewVerifyReport(name string, id spec.EID, weights []float64, rows, cols int, alpha float64) *VerifyReport {
	if alpha <= 0 {
		alpha = 0.01
	}
	expected := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		off := r * cols
		total := 0.0
		for c := 0; c < cols; c++ {
			total += weights[off+c]
		}
		if total <= 0 {
			continue
		}
		for c := 0; c < cols; c++ {
			expected[off+c] = weights[off+c] / total
		}
	}
	return &VerifyReport{
		Summary: &SummaryReport{
			EngineName: name,
			EngineID:   id,
			Rows:       rows,
			Cols:       cols,
			Alpha:      alpha,
		},
		Tally: &TallyReport{
			Expected: expected,
			Counts:   make([]int, rows*cols),
			RowDraws: make([]int, rows),
			Invalid:  make([]int, rows),
		},
	}
}

// Record 紀錄一次抽樣結果
//
// cat 為 1-based category。超出 [1, cols] 視為無效抽樣並使該 row 直接失敗
func (s *VerifyReport) Record(row, cat int) {
	if cat < 1 || cat > s.Summary.Cols {
		s.Tally.Invalid[row]++
		return
	}
	s.Tally.Counts[row*s.Summary.Cols+cat-1]++
	s.Tally.RowDraws[row]++
}

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 統計過程因為性能原因只處理 int 的計數，所以累積完成後
//
// 請使用 Done 來通知報告可以一次性計算頻率、卡方與 p-value
func (s *VerifyReport) Done() {
	if s.isDone {
		return
	}
	rows, cols := s.Summary.Rows, s.Summary.Cols
	fit := &FitReport{
		Freq:       make([]float64, rows*cols),
		ChiSquare:  make([]float64, rows),
		PValue:     make([]float64, rows),
		MaxAbsErr:  make([]float64, rows),
		Degenerate: make([]bool, rows),
		Pass:       make([]bool, rows),
	}

	totalDraws, totalInvalid := 0, 0
	pooledChi, pooledDof := 0.0, 0.0
	maxErr := 0.0
	passRows, failRows, degenRows := 0, 0, 0

	for r := 0; r < rows; r++ {
		off := r * cols
		draws := s.Tally.RowDraws[r]
		totalDraws += draws
		totalInvalid += s.Tally.Invalid[r]

		mass := 0.0
		for c := 0; c < cols; c++ {
			mass += s.Tally.Expected[off+c]
		}
		if mass <= 0 {
			// degenerate row: 引擎約定所有抽樣落 category 1
			fit.Degenerate[r] = true
			fit.PValue[r] = 1
			fit.Pass[r] = s.Tally.Invalid[r] == 0 && s.Tally.Counts[off] == draws
			if draws > 0 {
				fit.Freq[off] = float64(s.Tally.Counts[off]) / float64(draws)
			}
			degenRows++
			continue
		}

		chi, dof := rowChiSquare(s.Tally.Counts[off:off+cols], s.Tally.Expected[off:off+cols], draws)
		pv := 1.0
		if dof >= 1 && !math.IsInf(chi, 1) {
			pv = distuv.ChiSquared{K: float64(dof)}.Survival(chi)
		} else if math.IsInf(chi, 1) {
			pv = 0
		}

		errMax := 0.0
		if draws > 0 {
			for c := 0; c < cols; c++ {
				f := float64(s.Tally.Counts[off+c]) / float64(draws)
				fit.Freq[off+c] = f
				if d := math.Abs(f - s.Tally.Expected[off+c]); d > errMax {
					errMax = d
				}
			}
		}

		fit.ChiSquare[r] = chi
		fit.PValue[r] = pv
		fit.MaxAbsErr[r] = errMax
		fit.Pass[r] = s.Tally.Invalid[r] == 0 && pv >= s.Summary.Alpha
		if fit.Pass[r] {
			passRows++
		} else {
			failRows++
		}
		if errMax > maxErr {
			maxErr = errMax
		}
		if !math.IsInf(chi, 1) {
			pooledChi += chi
			pooledDof += float64(dof)
		}
	}

	s.Fit = fit
	s.Summary.TotalDraws = totalDraws
	s.Summary.InvalidDraws = totalInvalid
	s.Summary.ChiSquare = pooledChi
	if pooledDof >= 1 {
		s.Summary.PValue = distuv.ChiSquared{K: pooledDof}.Survival(pooledChi)
	} else {
		s.Summary.PValue = 1
	}
	s.Summary.MaxAbsErr = maxErr
	s.Summary.PassRows = passRows
	s.Summary.FailRows = failRows
	s.Summary.DegenRows = degenRows

	tested := passRows + failRows
	if tested > 0 {
		s.Summary.PassRate = float64(passRows) / float64(tested)
	}
	_, s.Summary.PassCI = proportionCICP(passRows, tested, 0.95)

	s.isDone = true
}

// PassRate 回傳非 degenerate row 中通過 alpha 檢定的比例
func (s *VerifyReport) PassRate() float64 {
	s.Done()
	return s.Summary.PassRate
}

// PooledPValue 回傳合併卡方檢定的 p-value
func (s *VerifyReport) PooledPValue() float64 {
	s.Done()
	return s.Summary.PValue
}

// MaxErr 回傳所有 row 的最大頻率絕對誤差
func (s *VerifyReport) MaxErr() float64 {
	s.Done()
	return s.Summary.MaxAbsErr
}

func (s *VerifyReport) WriteWith(w io.Writer, rep VerifyReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *VerifyReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.TotalDraws)
	sk, sm := s.fmtBasic()
	str := fmtTable(s.Summary.EngineName, sk, sm)
	fmt.Println(str)
}

// ============================================================
// ** 內部方法 **
// ============================================================

// rowChiSquare 對單一 row 計算卡方統計量
//
// 只納入期望機率 > 0 的 cell，自由度 = 非零 cell 數 - 1。
// 期望為零的 cell 出現計數即回傳 +Inf（抽樣違反零權重約定）
func rowChiSquare(counts []int, expected []float64, draws int) (chi float64, dof int) {
	if draws == 0 {
		return 0, 0
	}
	live := 0
	for c := range expected {
		if expected[c] <= 0 {
			if counts[c] > 0 {
				return math.Inf(1), 0
			}
			continue
		}
		live++
		want := expected[c] * float64(draws)
		diff := float64(counts[c]) - want
		chi += diff * diff / want
	}
	return chi, live - 1
}

func formatDuration(d time.Duration, draws int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	dps := int(float64(draws) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\ndps : %d draws/sec\n", sec, dps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\ndps : %d draws/sec\n", m, s, dps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\ndps : %d draws/sec\n", h, m, s, dps)
}

// StdOut

func (s *VerifyReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Engine Name":   p.Sprintf("%s", s.Summary.EngineName),
		"Engine ID":     fmt.Sprintf("%d", s.Summary.EngineID),
		"Rows":          p.Sprintf("%d", s.Summary.Rows),
		"Cols":          p.Sprintf("%d", s.Summary.Cols),
		"Rounds":        p.Sprintf("%d", s.Summary.Rounds),
		"Total Draws":   p.Sprintf("%d", s.Summary.TotalDraws),
		"Invalid Draws": p.Sprintf("%d", s.Summary.InvalidDraws),
		"Chi-Square":    p.Sprintf("%.3f", s.Summary.ChiSquare),
		"P-Value":       p.Sprintf("%.4f", s.Summary.PValue),
		"Max |err|":     p.Sprintf("%.5f", s.Summary.MaxAbsErr),
		"Pass Rows":     p.Sprintf("%d / %d", s.Summary.PassRows, s.Summary.PassRows+s.Summary.FailRows),
		"Degenerate":    p.Sprintf("%d", s.Summary.DegenRows),
		"Pass Rate":     p.Sprintf("%.2f %%", 100.0*s.Summary.PassRate),
		"Pass 95% CI":   p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.PassCI.Lo, 100.0*s.Summary.PassCI.Hi),
		"Alpha":         p.Sprintf("%.3f", s.Summary.Alpha),
	}
	keys := []string{"Engine Name", "Engine ID", "Rows", "Cols", "Rounds", "Total Draws", "Invalid Draws", "Chi-Square", "P-Value", "Max |err|", "Pass Rows", "Degenerate", "Pass Rate", "Pass 95% CI", "Alpha"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
