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

// CumsumRows 回傳逐列 inclusive 前綴和 kernel：prefix[row][c] =
// mat[row][0..c] 之和。prefix 與 mat 同形狀，可以是同一塊切片
// （就地累積）。
//
// 每列由一個 block 認領，欄位以 lane 數為 chunk 寬度分段：
// 段內用 ScanAdd 做平行掃描，段間由跑動的 carry 串接。
// 累積順序因此與逐欄循序加總不同，浮點結果只在捨入誤差內一致。
func CumsumRows[F grid.Floaters](prefix, mat []F, rows, cols int) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		smem := make([]F, g.Lanes())
		return func(lane int) {
			lanes := g.Lanes()
			chunks := grid.CeilDiv(cols, lanes)
			for row := g.Block(); row < rows; row += g.Grid() {
				off := row * cols
				var carry F
				for chunk := 0; chunk < chunks; chunk++ {
					c := chunk*lanes + lane
					if c < cols {
						smem[lane] = mat[off+c]
					} else {
						smem[lane] = 0
					}
					g.Sync()

					grid.ScanAdd(g, lane, smem)

					if c < cols {
						prefix[off+c] = carry + smem[lane]
					}
					carry += smem[lanes-1]
					g.Sync()
				}
			}
		}
	}
}
