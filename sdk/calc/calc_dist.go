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

import "math"

// DistCalculator 負責對一份權重矩陣做循序的分佈查詢。
//
// 建構時一次性完成預處理（正規化副本、逐列前綴和、質量統計），
// 之後的查詢都是 O(1) 或 O(log cols)，原始權重不被修改。
type DistCalculator struct {
	// 讀取自呼叫端
	Weights []float64 // 原始 row-major 權重（唯讀）
	Rows    int
	Cols    int

	// 預處理資料(快取)
	Norm   []float64 // 正規化副本
	Prefix []float64 // inclusive 前綴和
	mass   []float64 // 每列原始質量
	live   []int     // 每列正權重數
}

// NewDistCalculator 建立分佈計算器。weights 長度必須為 rows*cols，
// 由呼叫端保證；這裡不做邊界檢查。
func NewDistCalculator(weights []float64, rows, cols int) *DistCalculator {
	dc := &DistCalculator{
		Weights: weights,
		Rows:    rows,
		Cols:    cols,
	}
	dc.init()
	return dc
}

// Draw 以均勻值 u 對第 row 列抽出一個 1-based 類別。
// 零質量列與 u <= 0 判給類別 1，與 kernel 的退化判決一致。
func (dc *DistCalculator) Draw(row int, u float64) int {
	if dc.mass[row] <= 0 || u <= 0 {
		return 1
	}
	cdf := dc.Prefix[row*dc.Cols : (row+1)*dc.Cols]
	start, end := 0, len(cdf)
	for start < end {
		mid := start + (end-start)/2
		if cdf[mid] < u {
			start = mid + 1
		} else {
			end = mid
		}
	}
	if start == len(cdf) {
		start = 0
	}
	return start + 1
}

// Prob 回傳第 row 列 1-based 類別 cat 的正規化機率。
// 零質量列所有類別都回 0。
func (dc *DistCalculator) Prob(row, cat int) float64 {
	return dc.Norm[row*dc.Cols+cat-1]
}

// RowMass 回傳第 row 列的原始質量（正規化前總和）。
func (dc *DistCalculator) RowMass(row int) float64 {
	return dc.mass[row]
}

// Degenerate 回報第 row 列是否為零質量列。
func (dc *DistCalculator) Degenerate(row int) bool {
	return dc.mass[row] <= 0
}

// Live 回傳第 row 列正權重的類別數。
func (dc *DistCalculator) Live(row int) int {
	return dc.live[row]
}

// RowMean 回傳第 row 列類別編號的期望值 Σ p_c * c。
// 零質量列依退化判決視為必中類別 1。
func (dc *DistCalculator) RowMean(row int) float64 {
	if dc.mass[row] <= 0 {
		return 1
	}
	off := row * dc.Cols
	var m float64
	for c := 0; c < dc.Cols; c++ {
		m += dc.Norm[off+c] * float64(c+1)
	}
	return m
}

// RowEntropy 回傳第 row 列的 Shannon entropy（nats）。
// 零質量列視為點分佈，entropy 為 0。
func (dc *DistCalculator) RowEntropy(row int) float64 {
	if dc.mass[row] <= 0 {
		return 0
	}
	off := row * dc.Cols
	var h float64
	for c := 0; c < dc.Cols; c++ {
		if p := dc.Norm[off+c]; p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

// ============================================================
// ** 以下內部方法 **
// ============================================================

// init 初始化計算器的快取資料
func (dc *DistCalculator) init() {
	dc.initNorm()   // 正規化副本與列質量
	dc.initPrefix() // 逐列前綴和
	dc.initLive()   // 正權重統計
}

func (dc *DistCalculator) initNorm() {
	dc.Norm = make([]float64, len(dc.Weights))
	copy(dc.Norm, dc.Weights)
	dc.mass = make([]float64, dc.Rows)
	for r := 0; r < dc.Rows; r++ {
		dc.mass[r] = RenormRow(dc.Norm[r*dc.Cols : (r+1)*dc.Cols])
	}
}

func (dc *DistCalculator) initPrefix() {
	dc.Prefix = make([]float64, len(dc.Norm))
	for r := 0; r < dc.Rows; r++ {
		off := r * dc.Cols
		CumsumRow(dc.Prefix[off:off+dc.Cols], dc.Norm[off:off+dc.Cols])
	}
}

func (dc *DistCalculator) initLive() {
	dc.live = make([]int, dc.Rows)
	for r := 0; r < dc.Rows; r++ {
		off := r * dc.Cols
		for c := 0; c < dc.Cols; c++ {
			if dc.Weights[off+c] > 0 {
				dc.live[r]++
			}
		}
	}
}
