// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gen

import (
	"math"
	"testing"

	"github.com/zintix-labs/gridlab/sdk/calc"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
)

func testCore(seed int64) *core.Core {
	return core.New(core.Default().New(seed))
}

// testGaussianSetting 回傳一份條件良好的高斯配方：
// 目標期望值落在形狀分佈的可達範圍中段，兩池都容易收滿。
func testGaussianSetting() *RowSetting {
	return &RowSetting{
		RowName:    "base",
		Support:    []float64{0, 1, 2, 3, 4, 6, 8, 10},
		TargetMean: 3,
		Basis:      20,
		Repeat:     2,
		ShapeCfg: &ShapeCfg{
			Method: "gaussian",
			Gaussian: &Gaussian{
				KRange:    [2]int{1, 2},
				MuCenter:  3,
				MuStd:     2,
				StdRange:  [2]float64{0.5, 3},
				AmpRange:  [2]float64{0.5, 1.5},
				ZeroRange: [2]float64{0.1, 0.2},
			},
		},
		QualityEval: &QualityEvaluate{MeanMedianRatio: [2]float64{0.1, 50}},
	}
}

func rowSum(w []float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// -----------------------------------------------------------------------------
// Tests for row generators
// -----------------------------------------------------------------------------

// TestUniformRowGenerator 驗證均勻產生器的基本行為
// 檢查項目: 權重均勻且總和為 1；Mean/Median 與 calc 的加權統計一致；
// 重複 Set 回傳 false
func TestUniformRowGenerator(t *testing.T) {
	support := []float64{1, 2, 3, 4}
	g, err := NewUniformRowGenerator(&RowSetting{})
	if err != nil {
		t.Fatalf("new uniform: %v", err)
	}
	if ok := g.Set(support); !ok {
		t.Fatal("first Set should succeed")
	}
	if ok := g.Set(support); ok {
		t.Fatal("second Set should fail")
	}

	row, err := g.Gen(testCore(7))
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	for i, w := range row.Weights {
		if math.Abs(w-0.25) > 1e-15 {
			t.Fatalf("weights[%d] = %v, want 0.25", i, w)
		}
	}
	if math.Abs(row.Mean-2.5) > 1e-12 {
		t.Fatalf("mean = %v, want 2.5", row.Mean)
	}
	if row.Median != calc.WeightedMedian(support, row.Weights) {
		t.Fatalf("median = %v diverges from calc", row.Median)
	}
}

// TestGaussianMixtureRowGenerator 驗證高斯混合產生器的質量分配
// 檢查項目: 權重總和為 1；零值類別均攤的質量落在 zero_range；
// 所有權重非負且有限
func TestGaussianMixtureRowGenerator(t *testing.T) {
	rs := testGaussianSetting()
	rs.Support = []float64{0, 0, 1, 2, 4, 8}
	if err := rs.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	g, err := NewGaussianMixtureRowGenerator(rs)
	if err != nil {
		t.Fatalf("new gaussian: %v", err)
	}
	if ok := g.Set(rs.Support); !ok {
		t.Fatal("Set failed")
	}

	c := testCore(11)
	for i := 0; i < 50; i++ {
		row, err := g.Gen(c)
		if err != nil {
			t.Fatalf("gen #%d: %v", i, err)
		}
		if math.Abs(rowSum(row.Weights)-1) > 1e-9 {
			t.Fatalf("gen #%d: sum = %v, want 1", i, rowSum(row.Weights))
		}
		if row.Weights[0] != row.Weights[1] {
			t.Fatalf("gen #%d: zero head not evenly spread: %v vs %v", i, row.Weights[0], row.Weights[1])
		}
		zeroRate := row.Weights[0] + row.Weights[1]
		if zeroRate < 0.1-1e-12 || zeroRate > 0.2+1e-12 {
			t.Fatalf("gen #%d: zero mass %v outside zero_range", i, zeroRate)
		}
		for j, w := range row.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				t.Fatalf("gen #%d: weights[%d] = %v", i, j, w)
			}
		}
	}
}

// TestGammaMixtureRowGenerator 驗證 gamma 混合產生器
// 檢查項目: 正 support 上權重總和為 1 且全部有限非負
func TestGammaMixtureRowGenerator(t *testing.T) {
	rs := &RowSetting{
		RowName:    "tail",
		Support:    []float64{1, 2, 3, 5, 8, 13},
		TargetMean: 4,
		Basis:      10,
		ShapeCfg: &ShapeCfg{
			Method: "gamma",
			Gamma: &Gamma{
				KRange:    [2]int{1, 3},
				MuCenter:  4,
				MuStd:     2,
				StdRange:  [2]float64{1, 4},
				AmpRange:  [2]float64{0.5, 1.5},
				ZeroRange: [2]float64{0, 0},
			},
		},
		QualityEval: &QualityEvaluate{MeanMedianRatio: [2]float64{0.1, 50}},
	}
	if err := rs.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	g, err := NewGammaMixtureRowGenerator(rs)
	if err != nil {
		t.Fatalf("new gamma: %v", err)
	}
	if ok := g.Set(rs.Support); !ok {
		t.Fatal("Set failed")
	}

	c := testCore(13)
	for i := 0; i < 50; i++ {
		row, err := g.Gen(c)
		if err != nil {
			t.Fatalf("gen #%d: %v", i, err)
		}
		if math.Abs(rowSum(row.Weights)-1) > 1e-9 {
			t.Fatalf("gen #%d: sum = %v, want 1", i, rowSum(row.Weights))
		}
		for j, w := range row.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				t.Fatalf("gen #%d: weights[%d] = %v", i, j, w)
			}
		}
	}
}

// TestSpikeOutsideSupport 驗證 spike 區間掃不到任何 support 時自動停用
// 檢查項目: Set 後 SpikeOn 為 false；Gen 結果總和仍為 1
func TestSpikeOutsideSupport(t *testing.T) {
	rs := testGaussianSetting()
	rs.ShapeCfg.Gaussian.Spike = &SpikeCfg{
		MassRange: [2]float64{0.001, 0.002},
		WinRange:  [2]float64{100, 200}, // 高於所有 support
	}
	g, err := NewGaussianMixtureRowGenerator(rs)
	if err != nil {
		t.Fatalf("new gaussian: %v", err)
	}
	if ok := g.Set(rs.Support); !ok {
		t.Fatal("Set failed")
	}
	gm := g.(*GaussianMixtureRowGenerator)
	if gm.SpikeOn {
		t.Fatal("spike should be disabled when win_range misses support")
	}
	row, err := g.Gen(testCore(17))
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	if math.Abs(rowSum(row.Weights)-1) > 1e-9 {
		t.Fatalf("sum = %v, want 1", rowSum(row.Weights))
	}
}

// -----------------------------------------------------------------------------
// Tests for setting validation
// -----------------------------------------------------------------------------

// TestRowSettingValidate 驗證配方檢查
// 檢查項目: 缺名稱、support 未排序、目標越界、缺 shape_cfg、
// 未知 method、缺 quality_evaluate 都要被拒絕
func TestRowSettingValidate(t *testing.T) {
	mk := func(mut func(*RowSetting)) *RowSetting {
		rs := testGaussianSetting()
		mut(rs)
		return rs
	}
	cases := []struct {
		name string
		rs   *RowSetting
	}{
		{name: "empty name", rs: mk(func(rs *RowSetting) { rs.RowName = "" })},
		{name: "unsorted support", rs: mk(func(rs *RowSetting) { rs.Support = []float64{1, 0, 2} })},
		{name: "mean too high", rs: mk(func(rs *RowSetting) { rs.TargetMean = 99 })},
		{name: "mean too low", rs: mk(func(rs *RowSetting) { rs.TargetMean = -1 })},
		{name: "zero basis", rs: mk(func(rs *RowSetting) { rs.Basis = 0 })},
		{name: "nil shape cfg", rs: mk(func(rs *RowSetting) { rs.ShapeCfg = nil })},
		{name: "unknown method", rs: mk(func(rs *RowSetting) { rs.ShapeCfg.Method = "zipf" })},
		{name: "gamma missing cfg", rs: mk(func(rs *RowSetting) { rs.ShapeCfg.Method = "gamma" })},
		{name: "nil quality", rs: mk(func(rs *RowSetting) { rs.QualityEval = nil })},
	}
	for _, c := range cases {
		if err := c.rs.validate(); err == nil {
			t.Fatalf("case %q: expected error", c.name)
		}
	}

	ok := testGaussianSetting()
	if err := ok.validate(); err != nil {
		t.Fatalf("valid setting rejected: %v", err)
	}
}

// TestMatrixSettingValidate 驗證矩陣層級的一致性
// 檢查項目: support 長度不一致要被拒絕
func TestMatrixSettingValidate(t *testing.T) {
	a := testGaussianSetting()
	b := testGaussianSetting()
	b.RowName = "bonus"
	b.Support = []float64{0, 1, 2}
	b.TargetMean = 1
	b.ShapeCfg.Gaussian.MuCenter = 1

	ms := &MatrixSetting{MatrixName: "m", Rows: []*RowSetting{a, b}}
	if err := ms.validate(); err == nil {
		t.Fatal("expected support length mismatch error")
	}
}

// -----------------------------------------------------------------------------
// Tests for Designer
// -----------------------------------------------------------------------------

// TestDesignerDesign 驗證完整生成流程
// 檢查項目: 矩陣維度正確；每列總和為 1；每列加權期望值精確命中 target_mean
func TestDesignerDesign(t *testing.T) {
	rs := testGaussianSetting()
	ms := &MatrixSetting{MatrixName: "base-bank", Rows: []*RowSetting{rs}}
	d, err := NewDesigner(ms)
	if err != nil {
		t.Fatalf("new designer: %v", err)
	}
	if d.Rows() != 2 || d.Cols() != len(rs.Support) {
		t.Fatalf("shape = %dx%d", d.Rows(), d.Cols())
	}

	m, err := d.Design(testCore(19))
	if err != nil {
		t.Fatalf("design: %v", err)
	}
	if m.Rows != 2 || m.Cols != len(rs.Support) || len(m.Weights) != m.Rows*m.Cols {
		t.Fatalf("matrix shape wrong: %dx%d len %d", m.Rows, m.Cols, len(m.Weights))
	}
	for r := 0; r < m.Rows; r++ {
		w := m.Weights[r*m.Cols : (r+1)*m.Cols]
		if math.Abs(rowSum(w)-1) > 1e-9 {
			t.Fatalf("row %d sum = %v, want 1", r, rowSum(w))
		}
		mean := calc.WeightedMean(rs.Support, w)
		if math.Abs(mean-rs.TargetMean) > 1e-6 {
			t.Fatalf("row %d mean = %v, want %v", r, mean, rs.TargetMean)
		}
	}
}

// TestDesignerUniformWithStd 驗證 uniform 配方與 std 品質窗
// 檢查項目: target_mean 等於均勻期望值時一輪收斂；
// target_std 設為理論值時 stdFilter 放行
func TestDesignerUniformWithStd(t *testing.T) {
	rs := &RowSetting{
		RowName:     "flat",
		Support:     []float64{1, 2, 3, 4},
		TargetMean:  2.5,
		TargetStd:   1.118, // sqrt(1.25)
		Basis:       4,
		Repeat:      3,
		ShapeCfg:    &ShapeCfg{Method: "uniform"},
		QualityEval: &QualityEvaluate{MeanMedianRatio: [2]float64{0.5, 2}},
	}
	ms := &MatrixSetting{MatrixName: "flat-bank", Rows: []*RowSetting{rs}}
	d, err := NewDesigner(ms)
	if err != nil {
		t.Fatalf("new designer: %v", err)
	}
	m, err := d.Design(testCore(23))
	if err != nil {
		t.Fatalf("design: %v", err)
	}
	if m.Rows != 3 {
		t.Fatalf("rows = %d, want 3", m.Rows)
	}
	for i, w := range m.Weights {
		if math.Abs(w-0.25) > 1e-12 {
			t.Fatalf("weights[%d] = %v, want 0.25", i, w)
		}
	}
}

// TestFromEngineSetting 驗證引擎設定檔 fixed 區塊的矩陣設計圖解碼
// 檢查項目: YAML 引擎設定的 fixed 可以直接解出 MatrixSetting 並建出 Designer
func TestFromEngineSetting(t *testing.T) {
	raw := []byte(`
engine_name: zeus
engine_id: 9001
blocks: 4
lanes: 64
fixed:
  matrix_name: zeus-bank
  row_settings:
    - row_name: base
      support: [0, 1, 2, 4, 8]
      target_mean: 2
      basis: 10
      repeat: 1
      shape_cfg:
        method: gaussian
        gaussian:
          k_range: [1, 2]
          mu_center: 2
          mu_std: 1
          std_range: [0.5, 2]
          amp_range: [0.5, 1.5]
          zero_range: [0.1, 0.2]
      quality_evaluate:
        mean_median_ratio: [0.1, 50]
`)
	es, err := spec.GetEngineSettingByYAML(raw)
	if err != nil {
		t.Fatalf("engine setting: %v", err)
	}
	ms, err := FromEngineSetting(es)
	if err != nil {
		t.Fatalf("from engine setting: %v", err)
	}
	if ms.MatrixName != "zeus-bank" || len(ms.Rows) != 1 {
		t.Fatalf("unexpected matrix setting: %+v", ms)
	}
	if _, err := NewDesigner(ms); err != nil {
		t.Fatalf("new designer: %v", err)
	}
}
