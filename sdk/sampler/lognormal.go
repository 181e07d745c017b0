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

import (
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/grid"
)

// FillLogNormal 回傳把 dest 填滿對數常態亂數的 kernel：
// dest[i] = exp(mean + stddev*Z)，Z 為標準常態。
//
// 全域索引 = block*lanes + lane，步幅 = grid*lanes。迭代上限
// 取 len(dest) 除以步幅後無條件進位，讓尾端不足一整步時所有
// lane 仍集體抽號：索引出界的 lane 抽了就丟。F 決定抽號精度，
// float32 與 float64 走 core.LogNormal 的不同消耗路徑，兩者
// 序列互不相同。
func FillLogNormal[F grid.Floaters](sa *core.StateArray, dest []F, mean, stddev float64) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		return func(lane int) {
			stride := g.Grid() * g.Lanes()
			rounds := grid.CeilDiv(len(dest), stride)
			for r := 0; r < rounds; r++ {
				v := core.Collective(sa, g, lane, func(rng core.RAND) F {
					return core.LogNormal[F](rng, mean, stddev)
				})
				if i := r*stride + g.Block()*g.Lanes() + lane; i < len(dest) {
					dest[i] = v
				}
			}
		}
	}
}
