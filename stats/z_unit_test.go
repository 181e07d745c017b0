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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// buildVerifyReport constructs a VerifyReport from explicit per-row counts.
// counts[r][c] is recorded (cat = c+1) that many times.
func buildVerifyReport(weights []float64, rows, cols int, counts [][]int) *stats.VerifyReport {
	rep := stats.NewVerifyReport("testengine", spec.EID(0), weights, rows, cols, 0.01)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for k := 0; k < counts[r][c]; k++ {
				rep.Record(r, c+1)
			}
		}
	}
	return rep
}

func TestVerifyReportChiSquare(t *testing.T) {
	// 兩類均等機率，實測 60/40，卡方 = (60-50)^2/50 + (40-50)^2/50 = 4
	rep := buildVerifyReport([]float64{1, 1}, 1, 2, [][]int{{60, 40}})
	rep.Done()

	if got := rep.Fit.ChiSquare[0]; math.Abs(got-4.0) > 1e-12 {
		t.Fatalf("chi-square got %.12f want 4", got)
	}
	// chi2(1) 在 4 的存活函數 ≈ 0.0455
	if got := rep.Fit.PValue[0]; math.Abs(got-0.0455) > 1e-3 {
		t.Fatalf("p-value got %.6f want ~0.0455", got)
	}
	if got := rep.Fit.MaxAbsErr[0]; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("max abs err got %.12f want 0.1", got)
	}
	// alpha = 0.01 < 0.0455,仍應通過
	if !rep.Fit.Pass[0] {
		t.Fatalf("row should pass at alpha=0.01")
	}

	rep.Done() // idempotent
	if rep.Summary.TotalDraws != 100 {
		t.Fatalf("total draws changed after second Done: %d", rep.Summary.TotalDraws)
	}
}

func TestVerifyReportPerfectCounts(t *testing.T) {
	rows, cols := 4, 4
	weights := make([]float64, rows*cols)
	for i := range weights {
		weights[i] = 1
	}
	counts := make([][]int, rows)
	for r := range counts {
		counts[r] = []int{100, 100, 100, 100}
	}
	rep := buildVerifyReport(weights, rows, cols, counts)
	rep.Done()

	if rep.Summary.ChiSquare != 0 {
		t.Fatalf("pooled chi-square got %f want 0", rep.Summary.ChiSquare)
	}
	if rep.Summary.PValue != 1 {
		t.Fatalf("pooled p-value got %f want 1", rep.Summary.PValue)
	}
	if rep.PassRate() != 1 {
		t.Fatalf("pass rate got %f want 1", rep.PassRate())
	}
	if rep.Summary.PassCI.Hi != 1 {
		t.Fatalf("pass CI upper got %f want 1", rep.Summary.PassCI.Hi)
	}
	if rep.MaxErr() != 0 {
		t.Fatalf("max err got %f want 0", rep.MaxErr())
	}
}

func TestVerifyReportDegenerateRow(t *testing.T) {
	// row 0 正常,row 1 全零權重
	weights := []float64{1, 1, 0, 0}
	rep := stats.NewVerifyReport("testengine", spec.EID(7), weights, 2, 2, 0.01)
	for i := 0; i < 10; i++ {
		rep.Record(0, 1)
		rep.Record(0, 2)
		rep.Record(1, 1) // degenerate row 只能落 category 1
	}
	rep.Done()

	if !rep.Fit.Degenerate[1] {
		t.Fatalf("row 1 should be degenerate")
	}
	if !rep.Fit.Pass[1] {
		t.Fatalf("degenerate row with all category-1 draws should pass")
	}
	if rep.Summary.DegenRows != 1 {
		t.Fatalf("degen rows got %d want 1", rep.Summary.DegenRows)
	}
	// degenerate row 不計入 pass rate 分母
	if rep.Summary.PassRows+rep.Summary.FailRows != 1 {
		t.Fatalf("tested rows got %d want 1", rep.Summary.PassRows+rep.Summary.FailRows)
	}

	// degenerate row 落到 category 2 視為違反約定
	rep2 := stats.NewVerifyReport("testengine", spec.EID(7), weights, 2, 2, 0.01)
	rep2.Record(1, 2)
	rep2.Done()
	if rep2.Fit.Pass[1] {
		t.Fatalf("degenerate row with category-2 draw should fail")
	}
}

func TestVerifyReportInvalidDraw(t *testing.T) {
	rep := stats.NewVerifyReport("testengine", spec.EID(1), []float64{1, 1}, 1, 2, 0.01)
	for i := 0; i < 50; i++ {
		rep.Record(0, 1)
		rep.Record(0, 2)
	}
	rep.Record(0, 3) // 超界
	rep.Record(0, 0) // 超界
	rep.Done()

	if rep.Summary.InvalidDraws != 2 {
		t.Fatalf("invalid draws got %d want 2", rep.Summary.InvalidDraws)
	}
	if rep.Fit.Pass[0] {
		t.Fatalf("row with invalid draws should fail")
	}
	if rep.Summary.TotalDraws != 100 {
		t.Fatalf("invalid draws must not count into total: %d", rep.Summary.TotalDraws)
	}
}

func TestEstimatorRowFit(t *testing.T) {
	// 4 rows 均等機率:3 rows 完美,1 row 全部落同一 category
	rows, cols := 4, 2
	weights := make([]float64, rows*cols)
	for i := range weights {
		weights[i] = 1
	}
	counts := [][]int{
		{500, 500},
		{500, 500},
		{500, 500},
		{1000, 0},
	}
	rep := buildVerifyReport(weights, rows, cols, counts)
	est := stats.EstimatorRowFit(rep)

	if got := est.OutcomeStat.Pass.Hat; got != 0.75 {
		t.Fatalf("pass share got %.2f want 0.75", got)
	}
	if got := est.OutcomeStat.Fail.Hat; got != 0.25 {
		t.Fatalf("fail share got %.2f want 0.25", got)
	}
	if got := est.OutcomeStat.Degenerate.Hat; got != 0 {
		t.Fatalf("degenerate share got %.2f want 0", got)
	}

	// 尾端佔比必須對門檻單調
	tails := est.FitStat.TailPerc
	if tails.Le001.Hat > tails.Le01.Hat || tails.Le01.Hat > tails.Le05.Hat || tails.Le05.Hat > tails.Le10.Hat {
		t.Fatalf("tail shares not monotone: %.3f %.3f %.3f %.3f",
			tails.Le001.Hat, tails.Le01.Hat, tails.Le05.Hat, tails.Le10.Hat)
	}

	// 完美 row 的 p-value = 1 落最高帶,壞 row 落最低帶
	lastBand := len(est.BandStat.BandLabel) - 1
	if got := est.BandStat.BandShare[lastBand].Hat; got != 0.75 {
		t.Fatalf("top band share got %.2f want 0.75", got)
	}
	if got := est.BandStat.BandShare[0].Hat; got != 0.25 {
		t.Fatalf("bottom band share got %.2f want 0.25", got)
	}
}

func TestPValBucketsIndex(t *testing.T) {
	cases := []struct {
		p    float64
		want int
	}{
		{-1, 0},
		{0, 0},
		{0.0009, 0},
		{0.001, 1},
		{0.009, 1},
		{0.01, 2},
		{0.049, 2},
		{0.05, 3},
		{0.1, 4},
		{0.25, 5},
		{0.499, 5},
		{0.5, 6},
		{0.75, 7},
		{0.899, 7},
		{0.9, 8},
		{0.999, 8},
		{1, 8},
		{1.5, 8},
	}
	for _, cse := range cases {
		if got := stats.Buckets.Index(cse.p); got != cse.want {
			t.Fatalf("Index(%v) got %d want %d", cse.p, got, cse.want)
		}
	}
	if len(stats.Buckets.BucketStr()) != 9 {
		t.Fatalf("bucket labels got %d want 9", len(stats.Buckets.BucketStr()))
	}
}

func TestFitLogNormal(t *testing.T) {
	// log 域對稱樣本:logMean 恰為 mu,z=0,p-value=1
	mu, sigma := 0.5, 1.0
	values := make([]float64, 0, 200)
	for i := 1; i <= 100; i++ {
		d := float64(i) / 100.0
		values = append(values, math.Exp(mu-d), math.Exp(mu+d))
	}
	rep := stats.FitLogNormal(values, mu, sigma, 0.01)
	if !rep.Pass {
		t.Fatalf("symmetric sample should pass, p=%f", rep.PValue)
	}
	if math.Abs(rep.LogMean-mu) > 1e-12 {
		t.Fatalf("log mean got %.12f want %.12f", rep.LogMean, mu)
	}
	if math.Abs(rep.WantMean-math.Exp(mu+sigma*sigma/2)) > 1e-12 {
		t.Fatalf("theoretical mean mismatch: %f", rep.WantMean)
	}

	// 整體平移 0.5:n=200 時 z = 0.5/(1/sqrt(200)) ≈ 7,必不通過
	shifted := make([]float64, len(values))
	for i, v := range values {
		shifted[i] = v * math.Exp(0.5)
	}
	rep2 := stats.FitLogNormal(shifted, mu, sigma, 0.01)
	if rep2.Pass {
		t.Fatalf("shifted sample should fail, p=%f", rep2.PValue)
	}

	// 非正值直接失敗
	rep3 := stats.FitLogNormal([]float64{1, -2, 3}, mu, sigma, 0.01)
	if rep3.Pass {
		t.Fatalf("non-positive sample should fail")
	}
}

func TestRenderReadableYAML(t *testing.T) {
	rep := buildVerifyReport([]float64{1, 1}, 1, 2, [][]int{{50, 50}})
	rep.Done()

	var buf bytes.Buffer
	if err := rep.WriteWith(&buf, &stats.YAMLVerifyReportRender{}); err != nil {
		t.Fatalf("yaml render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Summary:") {
		t.Fatalf("yaml output missing Summary: %s", out)
	}
	// 一維陣列應為 flow style
	if !strings.Contains(out, "[") {
		t.Fatalf("yaml output should contain flow-style arrays: %s", out)
	}

	var jsonBuf bytes.Buffer
	if err := rep.WriteWith(&jsonBuf, &stats.JsonVerifyReportRender{}); err != nil {
		t.Fatalf("json render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output not parseable: %v", err)
	}
	if _, ok := decoded["Summary"]; !ok {
		t.Fatalf("json output missing Summary")
	}
}
