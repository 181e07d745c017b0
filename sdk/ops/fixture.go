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

// Package ops 提供 row-major 權重矩陣的原地操作與常用矩陣樣板。
//
// 所有函式都在扁平 []float64 上工作，維度由呼叫端傳入，
// 不做邊界檢查，長度由呼叫端保證。
package ops

// Uniform 建立 rows x cols 的均勻權重矩陣 (每格 1.0)
//
//   - rows, cols: 矩陣維度
func Uniform(rows, cols int) []float64 {
	w := make([]float64, rows*cols)
	Fill(w, 1)
	return w
}

// Ramp 建立 rows x cols 的線性遞增權重矩陣
//
// 每列皆為 1, 2, ..., cols，類別編號越大權重越高，
// 適合當作「非均勻但期望值可手算」的驗證樣板。
func Ramp(rows, cols int) []float64 {
	w := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			w[r*cols+c] = float64(c + 1)
		}
	}
	return w
}

// OneHot 建立 rows x cols 的點分佈矩陣：每列全部質量集中在 1-based 類別 cat
//
// cat 超出 [1, cols] 時回傳全零矩陣 (零質量列)。
func OneHot(rows, cols, cat int) []float64 {
	w := make([]float64, rows*cols)
	if cat < 1 || cat > cols {
		return w
	}
	for r := 0; r < rows; r++ {
		w[r*cols+cat-1] = 1
	}
	return w
}
