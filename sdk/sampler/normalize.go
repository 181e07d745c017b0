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

// Package sampler 實作分類分佈 (categorical / multinomial) 的 block 並行
// 取樣 kernel 組。
//
// 資料模型：分佈矩陣為 row-major 的 []F，rows 列分佈 x cols 個類別，
// 權重非負；類別索引一律 1-based（0 永遠不是合法輸出）。
//
// 所有 kernel 都以 grid.Kernel 形式回傳，由上層 (Device) 決定 Launch 形狀：
// block 以 grid-stride 輪轉認領分佈列，block 之間無任何同步；
// block 內以屏障協同，亂數一律走 core.StateArray 的集體推進。
// kernel 內部沒有錯誤路徑——所有退化輸入都以固定的 fallback 策略解決
// （詳見各 kernel 說明），參數合法性由上層邊界檢查把關。
package sampler

import "github.com/zintix-labs/gridlab/sdk/grid"

// RenormRows 回傳把 mat 就地逐列 L1 正規化的 kernel。
//
// 每列由一個 block 認領：各 lane 以 lane 數為步幅累加部分和，
// ReduceAdd 合成列總和後，每個 lane 將自己負責的欄位除以總和。
// 總和恰為 0 的列不動（零質量列維持零質量，不產生 NaN）。
func RenormRows[F grid.Floaters](mat []F, rows, cols int) grid.Kernel {
	return func(g *grid.Group) grid.Lane {
		smem := make([]F, g.Lanes())
		return func(lane int) {
			for row := g.Block(); row < rows; row += g.Grid() {
				off := row * cols

				var part F
				for c := lane; c < cols; c += g.Lanes() {
					part += mat[off+c]
				}
				total := grid.ReduceAdd(g, lane, smem, part)

				if total > 0 {
					for c := lane; c < cols; c += g.Lanes() {
						mat[off+c] /= total
					}
				}
				g.Sync()
			}
		}
	}
}
