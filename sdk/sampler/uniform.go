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

// FillUniform 回傳把 dest 填滿 [0,1) 均勻亂數的 kernel。
//
// 單樣本引擎的 dest 預填由此 kernel 完成，讓所有亂數消耗都走
// StateArray 的集體推進。索引規則與 FillLogNormal 相同：
// 全域索引 = block*lanes + lane，步幅 = grid*lanes，迭代上限
// 無條件進位讓尾端不足一整步時所有 lane 仍集體抽號。
func FillUniform[F grid.Floaters](sa *core.StateArray, dest []F) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		return func(lane int) {
			stride := g.Grid() * g.Lanes()
			rounds := grid.CeilDiv(len(dest), stride)
			for r := 0; r < rounds; r++ {
				v := core.Collective(sa, g, lane, core.Uniform[F])
				if i := r*stride + g.Block()*g.Lanes() + lane; i < len(dest) {
					dest[i] = v
				}
			}
		}
	}
}
