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

// Package calc 提供抽樣管線的循序參考實作（host-side scalar path）。
//
// sdk/sampler 的每個 kernel 在這裡都有一個單線循序鏡像，退化輸入的
// 判決完全相同：零質量列判給類別 1、u<=0 判給類別 1、浮點落空回到
// 類別 1。kernel 走分段掃描、這裡走逐欄累加，兩邊只在捨入誤差內一致。
//
// 用途：權重合成（sdk/gen）的 host 端數學、工具程式的期望值報表，
// 以及 kernel 測試的對照組。熱路徑一律走 kernel，這裡不做並行。
package calc

// RenormRow 就地把單列權重做 L1 正規化，回傳正規化前的總和。
// 總和 <= 0 時列保持原樣（零質量列維持零質量，不產生 NaN）。
func RenormRow(w []float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	if total > 0 {
		for i := range w {
			w[i] /= total
		}
	}
	return total
}

// CumsumRow 計算單列 inclusive 前綴和：prefix[c] = w[0..c] 之和。
// prefix 與 w 可為同一塊切片（就地累積）。
func CumsumRow(prefix, w []float64) {
	var run float64
	for i, v := range w {
		run += v
		prefix[i] = run
	}
}

// SearchRow 在 inclusive 前綴和上找出第一個值 >= target 的 0-based
// 索引。與 sampler.SearchCDF 同語意，但以線性掃描實作，供測試交叉
// 比對二分搜尋。全部 < target 時回傳 0。
func SearchRow(cdf []float64, target float64) int {
	for i, v := range cdf {
		if v >= target {
			return i
		}
	}
	return 0
}

// DrawRow 以均勻值 u 對單列權重抽出一個 1-based 類別。
//
// bucket 邊界為 (exclusive, inclusive]，與單樣本 kernel 相同；
// 列總和 <= 0 或 u <= 0 判給類別 1，浮點誤差使所有 bucket 落空時
// 也回到類別 1（對齊 SearchCDF 的 fallback）。
func DrawRow(w []float64, u float64) int {
	var total float64
	for _, v := range w {
		total += v
	}
	if total <= 0 || u <= 0 {
		return 1
	}
	var inc float64
	for i, v := range w {
		exc := inc
		inc += v / total
		if u > exc && u <= inc {
			return i + 1
		}
	}
	return 1
}
