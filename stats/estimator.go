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

package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// row 擬合品質評估
type EstimatorRows struct {
	FitStat     FitStat
	BandStat    BandStat
	OutcomeStat OutcomeStat
}

// p-value 敘事
type FitStat struct {
	PValMedian PointStat // 描述 p-value 的中位數
	PValPerc   PValPerc  // 描述 p-value 的分布(H0 下應接近 Uniform)
	TailPerc   TailPerc  // 描述落在顯著水準以下的 row 比例
}

// 用分位數視角看 p-value: 最差10% row 的 p-value 最差33% row 的 p-value ...
type PValPerc struct {
	PValP10 PointStat
	PValP33 PointStat
	PValP67 PointStat
	PValP90 PointStat
}

// 用顯著水準視角看 row: 有多少 row 的 p-value 落到了 0.001 以下 0.01 以下 ...
//
// H0 成立時比例應接近名目水準本身
type TailPerc struct {
	Le001 PointStat
	Le01  PointStat
	Le05  PointStat
	Le10  PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// 對應分帶的統計
type BandStat struct {
	BandLabel []string    // 分帶標籤
	BandShare []PointStat // 各帶 row 佔比點估計
}

// 對應結果敘事
type OutcomeStat struct {
	Pass       PointStat // 通過 alpha 檢定
	Fail       PointStat // 未通過
	Degenerate PointStat // 零質量 row
}

// ============================================================
// ** 對外 : row 擬合品質評估 **
// ============================================================

// EstimatorRowFit row 擬合品質評估
//
// 1. p-value 敘事 : 描述各 row p-value 的大致分布
//
// 2. Band 敘事 : 描述各 row 落在哪個 p-value 帶(對應 Buckets 的分帶)
//
// 3. Outcome 敘事 : 描述 row 最終通過檢定、失敗、或屬於零質量 degenerate 的比例
func EstimatorRowFit(rep *VerifyReport) *EstimatorRows {
	out := &EstimatorRows{}
	if rep == nil {
		return out
	}
	rep.Done()

	rows := rep.Summary.Rows
	if rows == 0 {
		return out
	}

	// ------------------------------------------------------------
	// 1) p-value 敘事：收集非 degenerate row 的 p-value 並做分位/CI
	// ------------------------------------------------------------
	pvals := make([]float64, 0, rows)
	for r := 0; r < rows; r++ {
		if rep.Fit.Degenerate[r] {
			continue
		}
		pvals = append(pvals, rep.Fit.PValue[r])
	}
	n := len(pvals)

	if n > 0 {
		medHat := quantilePoint(pvals, 0.5)
		medLo, medHi := quantileCI(pvals, 0.5, 0.95)

		p10Hat := quantilePoint(pvals, 0.10)
		p10Lo, p10Hi := quantileCI(pvals, 0.10, 0.95)

		p33Hat := quantilePoint(pvals, 1.0/3.0)
		p33Lo, p33Hi := quantileCI(pvals, 1.0/3.0, 0.95)

		p67Hat := quantilePoint(pvals, 2.0/3.0)
		p67Lo, p67Hi := quantileCI(pvals, 2.0/3.0, 0.95)

		p90Hat := quantilePoint(pvals, 0.90)
		p90Lo, p90Hi := quantileCI(pvals, 0.90, 0.95)

		le001Hat, le001CI := percentileCIForValue(pvals, 0.001, 0.95)
		le01Hat, le01CI := percentileCIForValue(pvals, 0.01, 0.95)
		le05Hat, le05CI := percentileCIForValue(pvals, 0.05, 0.95)
		le10Hat, le10CI := percentileCIForValue(pvals, 0.10, 0.95)

		out.FitStat = FitStat{
			PValMedian: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
			PValPerc: PValPerc{
				PValP10: PointStat{Hat: p10Hat, CI: CI{Lo: p10Lo, Hi: p10Hi}},
				PValP33: PointStat{Hat: p33Hat, CI: CI{Lo: p33Lo, Hi: p33Hi}},
				PValP67: PointStat{Hat: p67Hat, CI: CI{Lo: p67Lo, Hi: p67Hi}},
				PValP90: PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
			},
			TailPerc: TailPerc{
				Le001: PointStat{Hat: le001Hat, CI: le001CI},
				Le01:  PointStat{Hat: le01Hat, CI: le01CI},
				Le05:  PointStat{Hat: le05Hat, CI: le05CI},
				Le10:  PointStat{Hat: le10Hat, CI: le10CI},
			},
		}
	}

	// ------------------------------------------------------------
	// 2) Band 敘事：各 p-value 帶的 row 佔比 + CP 95% CI
	// ------------------------------------------------------------
	labels := Buckets.BucketStr()
	L := len(labels)
	out.BandStat = BandStat{BandLabel: labels, BandShare: make([]PointStat, L)}

	bandCount := make([]int, L)
	for _, pv := range pvals {
		bandCount[Buckets.Index(pv)]++
	}
	for bi := 0; bi < L; bi++ {
		hat, ci := proportionCICP(bandCount[bi], n, 0.95)
		out.BandStat.BandShare[bi] = PointStat{Hat: hat, CI: ci}
	}

	// ------------------------------------------------------------
	// 3) Outcome 敘事：Pass / Fail / Degenerate 比例 + CP 95% CI
	// ------------------------------------------------------------
	passHat, passCI := proportionCICP(rep.Summary.PassRows, rows, 0.95)
	failHat, failCI := proportionCICP(rep.Summary.FailRows, rows, 0.95)
	degHat, degCI := proportionCICP(rep.Summary.DegenRows, rows, 0.95)

	out.OutcomeStat = OutcomeStat{
		Pass:       PointStat{Hat: passHat, CI: passCI},
		Fail:       PointStat{Hat: failHat, CI: failCI},
		Degenerate: PointStat{Hat: degHat, CI: degCI},
	}

	return out
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorRows) Out() {
	// 1) p-value (Row Fit)
	fmt.Println("=== P-Value (Row Fit) ===")
	pvKeys := []string{
		"Median p-value",
		"P10 p-value",
		"P33 p-value",
		"P67 p-value",
		"P90 p-value",
		"≤0.001 (rows)",
		"≤0.01 (rows)",
		"≤0.05 (rows)",
		"≤0.10 (rows)",
	}
	pvMsg := map[string]string{
		"Median p-value": fmtHatCIpct01(est.FitStat.PValMedian.Hat, est.FitStat.PValMedian.CI),
		"P10 p-value":    fmtHatCIpct01(est.FitStat.PValPerc.PValP10.Hat, est.FitStat.PValPerc.PValP10.CI),
		"P33 p-value":    fmtHatCIpct01(est.FitStat.PValPerc.PValP33.Hat, est.FitStat.PValPerc.PValP33.CI),
		"P67 p-value":    fmtHatCIpct01(est.FitStat.PValPerc.PValP67.Hat, est.FitStat.PValPerc.PValP67.CI),
		"P90 p-value":    fmtHatCIpct01(est.FitStat.PValPerc.PValP90.Hat, est.FitStat.PValPerc.PValP90.CI),
		"≤0.001 (rows)":  fmtHatCIpct01(est.FitStat.TailPerc.Le001.Hat, est.FitStat.TailPerc.Le001.CI),
		"≤0.01 (rows)":   fmtHatCIpct01(est.FitStat.TailPerc.Le01.Hat, est.FitStat.TailPerc.Le01.CI),
		"≤0.05 (rows)":   fmtHatCIpct01(est.FitStat.TailPerc.Le05.Hat, est.FitStat.TailPerc.Le05.CI),
		"≤0.10 (rows)":   fmtHatCIpct01(est.FitStat.TailPerc.Le10.Hat, est.FitStat.TailPerc.Le10.CI),
	}
	printTable("P-Value (Row Fit)", pvKeys, pvMsg)

	// 2) Bands: rows per p-value band
	fmt.Println("\n=== Bands: rows per p-value band ===")
	for i, label := range est.BandStat.BandLabel {
		ps := est.BandStat.BandShare[i]
		fmt.Printf("%-14s : %s\n", label, fmtHatCIpct01(ps.Hat, ps.CI))
	}

	// 3) Row Outcome
	fmt.Println("\n=== Row Outcome ===")
	outcomeKeys := []string{"Pass", "Fail", "Degenerate"}
	outcomeMsg := map[string]string{
		"Pass":       fmtHatCIpct01(est.OutcomeStat.Pass.Hat, est.OutcomeStat.Pass.CI),
		"Fail":       fmtHatCIpct01(est.OutcomeStat.Fail.Hat, est.OutcomeStat.Fail.CI),
		"Degenerate": fmtHatCIpct01(est.OutcomeStat.Degenerate.Hat, est.OutcomeStat.Degenerate.CI),
	}
	printTable("Row Outcome", outcomeKeys, outcomeMsg)
}

func printTable(title string, keys []string, msg map[string]string) {
	fmt.Println(title)
	maxKeyLen := 0
	for _, k := range keys {
		if len(k) > maxKeyLen {
			maxKeyLen = len(k)
		}
	}
	for _, k := range keys {
		fmt.Printf("  %-*s : %s\n", maxKeyLen, k, msg[k])
	}
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}
