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

package sampler

import "github.com/zintix-labs/gridlab/sdk/grid"

// SampleOnce 回傳單樣本引擎 kernel：對每列分佈抽出一個類別，
// 寫進 dest[row]（1-based 類別編號）。
//
// 呼叫前 dest[row] 必須預先放好該列的均勻亂數值 u ∈ [0,1)；
// kernel 會以類別編號覆寫它。預抽亂數讓 kernel 本身不耗用
// 任何 PRNG 狀態，重播時只要重建 dest 的預抽內容即可。
//
// 每列流程：lane 步幅累加權重、ReduceAdd 得列總和、由 lane 0
// 讀出預抽值廣播給全 block，之後以 lane 數為 chunk 寬度對正規化
// 權重做分段 inclusive 前綴和，落在自己 bucket
// (exclusive, inclusive] 內的 lane 寫回類別編號。
//
// 退化情形：列總和為 0 或預抽值恰為 0 時，直接判給類別 1。
// 浮點誤差使所有 bucket 都未命中時，該列保留原樣——上層邊界
// 已保證預抽值嚴格小於 1，正規化誤差又極小，實務上不會發生；
// 真發生時殘留的 u 值必 < 1，下游一律當作非法類別處理。
func SampleOnce[F grid.Floaters](dest []F, mat []F, rows, cols int) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		smem := make([]F, g.Lanes())
		bcast := make([]F, 1)
		return func(lane int) {
			lanes := g.Lanes()
			for row := g.Block(); row < rows; row += g.Grid() {
				off := row * cols

				var part F
				for c := lane; c < cols; c += lanes {
					part += mat[off+c]
				}
				total := grid.ReduceAdd(g, lane, smem, part)

				if lane == 0 {
					bcast[0] = dest[row]
				}
				g.Sync()
				sampled := bcast[0]
				g.Sync()

				if total <= 0 || sampled <= 0 {
					if lane == 0 {
						dest[row] = 1
					}
					g.Sync()
					continue
				}

				chunks := grid.CeilDiv(cols, lanes)
				var prev F
				for chunk := 0; chunk < chunks; chunk++ {
					cat := chunk*lanes + lane
					if cat < cols {
						smem[lane] = mat[off+cat] / total
					} else {
						smem[lane] = 0
					}
					g.Sync()

					grid.ScanAdd(g, lane, smem)

					inclusive := prev + smem[lane]
					exclusive := prev
					if lane > 0 {
						exclusive += smem[lane-1]
					}
					if cat < cols && sampled > exclusive && sampled <= inclusive {
						dest[row] = F(cat + 1)
					}
					prev += smem[lanes-1]
					g.Sync()
				}
			}
		}
	}
}
