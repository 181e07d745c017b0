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

package calc

import (
	"math"
	"testing"

	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/sampler"
)

// fillRandom 以固定 seed 填入 (0,10) 的隨機權重
func fillRandom(mat []float64, seed int64) {
	rng := core.Default().New(seed)
	for i := range mat {
		mat[i] = rng.Float64() * 10
	}
}

// -----------------------------------------------------------------------------
// Tests for row functions
// -----------------------------------------------------------------------------

// TestRenormRow 驗證單列正規化的總和與零質量行為
// 檢查項目: 正質量列總和收斂到 1 且回傳原始總和；全零列不動並回傳 0
func TestRenormRow(t *testing.T) {
	w := []float64{2, 2, 4}
	if total := RenormRow(w); math.Abs(total-8) > 1e-15 {
		t.Fatalf("total = %v, want 8", total)
	}
	want := []float64{0.25, 0.25, 0.5}
	for i := range want {
		if math.Abs(w[i]-want[i]) > 1e-15 {
			t.Fatalf("w[%d] = %v, want %v", i, w[i], want[i])
		}
	}

	zero := []float64{0, 0, 0}
	if total := RenormRow(zero); total != 0 {
		t.Fatalf("zero row total = %v, want 0", total)
	}
	for i, v := range zero {
		if v != 0 {
			t.Fatalf("zero row touched at %d: %v", i, v)
		}
	}
}

// TestCumsumRowInPlace 驗證前綴和的就地累積
// 檢查項目: 分開輸出與就地輸出完全相同
func TestCumsumRowInPlace(t *testing.T) {
	w := make([]float64, 37)
	fillRandom(w, 43)

	ref := make([]float64, len(w))
	CumsumRow(ref, w)

	CumsumRow(w, w)
	for i := range w {
		if w[i] != ref[i] {
			t.Fatalf("in-place cumsum diverges at %d: %v vs %v", i, w[i], ref[i])
		}
	}
}

// TestSearchRowMatchesSearchCDF 驗證線性掃描與 kernel 的二分搜尋同語意
// 檢查項目: 隨機前綴和上兩種搜尋對大量目標值回傳相同索引（含落空 fallback）
func TestSearchRowMatchesSearchCDF(t *testing.T) {
	w := make([]float64, 257)
	fillRandom(w, 97)
	RenormRow(w)
	cdf := make([]float64, len(w))
	CumsumRow(cdf, w)

	rng := core.Default().New(101)
	for i := 0; i < 50000; i++ {
		u := rng.Float64() * 1.1 // 刻意覆蓋 > 1 的落空區
		lin := SearchRow(cdf, u)
		bin := sampler.SearchCDF(cdf, u)
		if lin != bin {
			t.Fatalf("target %v: linear %d, binary %d", u, lin, bin)
		}
	}
}

// TestDrawRowBuckets 驗證 bucket 邊界語意 (exclusive, inclusive]
// 檢查項目: 邊界值落在正確類別；退化輸入判給類別 1
func TestDrawRowBuckets(t *testing.T) {
	w := []float64{1, 3, 4, 2} // 正規化後 cdf = 0.1, 0.4, 0.8, 1.0
	cases := []struct {
		u    float64
		want int
	}{
		{u: 0.05, want: 1},
		{u: 0.1, want: 1},
		{u: 0.100001, want: 2},
		{u: 0.4, want: 2},
		{u: 0.8, want: 3},
		{u: 0.99, want: 4},
		{u: 1.0, want: 4},
	}
	for _, c := range cases {
		if got := DrawRow(w, c.u); got != c.want {
			t.Fatalf("DrawRow(u=%v) = %d, want %d", c.u, got, c.want)
		}
	}

	if got := DrawRow([]float64{0, 0, 0}, 0.7); got != 1 {
		t.Fatalf("zero-mass row drew %d, want 1", got)
	}
	if got := DrawRow(w, 0); got != 1 {
		t.Fatalf("u=0 drew %d, want 1", got)
	}
	if got := DrawRow(w, 1.5); got != 1 {
		t.Fatalf("overshoot u drew %d, want fallback 1", got)
	}
}

// -----------------------------------------------------------------------------
// Tests for DistCalculator
// -----------------------------------------------------------------------------

// TestDistCalculatorPreprocess 驗證預處理快取的完整性
// 檢查項目: 原始權重不被修改；Norm 列總和為 1；Prefix 尾端為 1；
// 質量、正權重數與零質量列判定正確
func TestDistCalculatorPreprocess(t *testing.T) {
	weights := []float64{
		2, 0, 6,
		0, 0, 0,
		1, 1, 2,
	}
	orig := make([]float64, len(weights))
	copy(orig, weights)

	dc := NewDistCalculator(weights, 3, 3)

	for i := range orig {
		if weights[i] != orig[i] {
			t.Fatalf("input weights modified at %d", i)
		}
	}
	if dc.RowMass(0) != 8 || dc.RowMass(1) != 0 || dc.RowMass(2) != 4 {
		t.Fatalf("row mass = %v %v %v", dc.RowMass(0), dc.RowMass(1), dc.RowMass(2))
	}
	if dc.Live(0) != 2 || dc.Live(1) != 0 || dc.Live(2) != 3 {
		t.Fatalf("live = %d %d %d", dc.Live(0), dc.Live(1), dc.Live(2))
	}
	if !dc.Degenerate(1) || dc.Degenerate(0) {
		t.Fatal("degenerate flags wrong")
	}
	if p := dc.Prob(0, 3); math.Abs(p-0.75) > 1e-15 {
		t.Fatalf("Prob(0,3) = %v, want 0.75", p)
	}
	if last := dc.Prefix[2]; math.Abs(last-1) > 1e-12 {
		t.Fatalf("prefix tail = %v, want 1", last)
	}
}

// TestDistCalculatorDrawMatchesDrawRow 驗證前綴和二分抽樣與逐欄掃描一致
// 檢查項目: 隨機矩陣上兩種路徑對大量均勻值選到同一類別
// (兩邊的正規化與累加順序相同，結果應逐 bit 一致)
func TestDistCalculatorDrawMatchesDrawRow(t *testing.T) {
	const rows, cols = 17, 61
	weights := make([]float64, rows*cols)
	fillRandom(weights, 31)
	dc := NewDistCalculator(weights, rows, cols)

	rng := core.Default().New(37)
	for i := 0; i < 20000; i++ {
		row := rng.IntN(rows)
		u := rng.Float64()
		fast := dc.Draw(row, u)
		slow := DrawRow(weights[row*cols:(row+1)*cols], u)
		if fast != slow {
			t.Fatalf("row %d u %v: prefix draw %d, scan draw %d", row, u, fast, slow)
		}
	}
}

// TestDistCalculatorRowMoments 驗證列期望值與 entropy
// 檢查項目: 均勻列的 RowMean 為 (cols+1)/2、entropy 為 ln(cols)；
// 點分佈列 entropy 為 0；零質量列 RowMean 依退化判決為 1
func TestDistCalculatorRowMoments(t *testing.T) {
	weights := []float64{
		1, 1, 1, 1,
		0, 0, 7, 0,
		0, 0, 0, 0,
	}
	dc := NewDistCalculator(weights, 3, 4)

	if m := dc.RowMean(0); math.Abs(m-2.5) > 1e-12 {
		t.Fatalf("uniform row mean = %v, want 2.5", m)
	}
	if h := dc.RowEntropy(0); math.Abs(h-math.Log(4)) > 1e-12 {
		t.Fatalf("uniform row entropy = %v, want ln(4)", h)
	}
	if h := dc.RowEntropy(1); h != 0 {
		t.Fatalf("point row entropy = %v, want 0", h)
	}
	if m := dc.RowMean(1); math.Abs(m-3) > 1e-12 {
		t.Fatalf("point row mean = %v, want 3", m)
	}
	if m := dc.RowMean(2); m != 1 {
		t.Fatalf("zero-mass row mean = %v, want 1", m)
	}
}

// -----------------------------------------------------------------------------
// Tests for weighted moments
// -----------------------------------------------------------------------------

// TestWeightedMoments 驗證加權期望值與加權中位數
// 檢查項目: 已知分佈的 mean/median；質量集中在尾端時 median 取尾端支撐點
func TestWeightedMoments(t *testing.T) {
	xs := []float64{0, 1, 2, 10}
	ps := []float64{0.25, 0.25, 0.25, 0.25}
	if m := WeightedMean(xs, ps); math.Abs(m-3.25) > 1e-15 {
		t.Fatalf("mean = %v, want 3.25", m)
	}
	if md := WeightedMedian(xs, ps); md != 1 {
		t.Fatalf("median = %v, want 1", md)
	}

	tail := []float64{0.1, 0.1, 0.1, 0.7}
	if md := WeightedMedian(xs, tail); md != 10 {
		t.Fatalf("tail median = %v, want 10", md)
	}
	if md := WeightedMedian(nil, nil); md != 0 {
		t.Fatalf("empty median = %v, want 0", md)
	}
}
