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

// SampleReplace 回傳放回式多樣本 kernel：對每列分佈抽 samples 個
// 類別，寫進 dest[row*samples : (row+1)*samples]（1-based 編號）。
//
// prefix 是與 mat 同形狀的 inclusive 前綴和矩陣，內容為正規化
// 權重的逐列累積（由 RenormRows + CumsumRows 產出）。
//
// block 以 grid-stride 認領列；列內樣本槽位以 lane 數為步幅分攤
// 給各 lane。每輪迭代整個 block 先集體抽一批均勻值——即使本輪
// 只剩部分 lane 還有槽位，其他 lane 也照樣抽、照樣丟棄——再由
// 持有槽位的 lane 對自己抽到的值做二分搜尋並寫回。集體推進讓
// PRNG 消耗量只由 (rows, samples, 形狀) 決定，與排程無關。
func SampleReplace[F grid.Floaters](sa *core.StateArray, dest []F, prefix []F, rows, cols, samples int) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		return func(lane int) {
			lanes := g.Lanes()
			for row := g.Block(); row < rows; row += g.Grid() {
				cdf := prefix[row*cols : (row+1)*cols]
				out := dest[row*samples : (row+1)*samples]
				for base := 0; base < samples; base += lanes {
					u := core.Collective(sa, g, lane, core.Uniform[F])
					if s := base + lane; s < samples {
						out[s] = F(SearchCDF(cdf, u) + 1)
					}
				}
			}
		}
	}
}

// SampleNoReplace 回傳不放回式 kernel 的單輪版本：對每列分佈抽出
// 第 sample 輪（0-based）的一個類別，寫進 dest[row*samples+sample]，
// 並把該類別在 mat 中的原始權重歸零。
//
// 一輪抽完後所有列的前綴和都已失效，上層必須重新正規化、重算
// prefix 再發動下一輪；kernel 自身只負責單輪。
//
// 列的認領方式與其他 kernel 不同：block 與 lane 合組步幅——
// 列 = base + lane，base 自 block*lanes 起以 grid*lanes 遞進——
// 讓每個 lane 獨佔一列，單輪內就不需要列內協同。集體抽號仍在
// 每一步進行，超出列數的 lane 抽了就丟。
func SampleNoReplace[F grid.Floaters](sa *core.StateArray, dest []F, prefix []F, mat []F, rows, cols, samples, sample int) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		return func(lane int) {
			lanes := g.Lanes()
			for base := g.Block() * lanes; base < rows; base += g.Grid() * lanes {
				u := core.Collective(sa, g, lane, core.Uniform[F])
				if row := base + lane; row < rows {
					cdf := prefix[row*cols : (row+1)*cols]
					choice := SearchCDF(cdf, u)
					dest[row*samples+sample] = F(choice + 1)
					mat[row*cols+choice] = 0
				}
			}
		}
	}
}
