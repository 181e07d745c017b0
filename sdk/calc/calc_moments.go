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

// WeightedMean 回傳支撐點的加權期望值 Σ xs[i]*ps[i]。
// ps 預期已正規化為機率（總和 1），呼叫端保證長度一致。
func WeightedMean(xs, ps []float64) float64 {
	var m float64
	for i := range xs {
		m += xs[i] * ps[i]
	}
	return m
}

// WeightedMedian 回傳加權中位數：累積機率首次達到 0.5 的支撐點。
// xs 必須是遞增排序、ps 總和為 1；捨入誤差造成累積不足時回傳最後
// 一個支撐點。
func WeightedMedian(xs, ps []float64) float64 {
	var acc float64
	for i := range xs {
		acc += ps[i]
		if acc >= 0.5 {
			return xs[i]
		}
	}
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
