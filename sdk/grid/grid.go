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

package grid

import (
	"fmt"
	"sync"
)

// Group 代表一個 block 在單次 Launch 中的執行身分。
//
// kernel 透過 Group 取得自己的 block 編號、grid 大小、lane 數量，
// 並以 Sync 執行 block 內屏障。Group 只在 Launch 期間有效。
type Group struct {
	block int
	grid  int
	lanes int
	bar   *Barrier
}

// Block 回傳此 block 在 grid 中的編號，範圍 [0, Grid())。
func (g *Group) Block() int { return g.block }

// Grid 回傳本次 Launch 的 block 總數。
func (g *Group) Grid() int { return g.grid }

// Lanes 回傳每個 block 的 lane 數量。
func (g *Group) Lanes() int { return g.lanes }

// Sync 等待同 block 的所有 lane 抵達後才放行（__syncthreads 等價物）。
func (g *Group) Sync() { g.bar.Wait() }

// Lane 為 kernel 的單一 lane 主體；lane 參數範圍 [0, Lanes())。
type Lane func(lane int)

// Kernel 為 block 級的 kernel 建構函數：每個 block 呼叫一次，
// 在閉包內配置該 block 的 shared memory（slice），回傳 lane 主體。
// 所有 lane 共享同一個閉包環境，等同於共享同一塊 local memory。
type Kernel func(g *Group) Lane

// Launch 以 blocks x lanes 的固定形狀執行 kernel，阻塞直到全部完成。
//
// 每個 lane 是一個 goroutine；block 之間互相獨立、可任意交錯，
// block 內則以 Group.Sync 協同。資料分片的指派（哪個 block 處理哪幾列）
// 由 kernel 自己以 grid-stride 決定，Launch 不介入。
//
// blocks、lanes 必須為正數；形狀合法性屬於上層配置的責任，
// 這裡只做最後的防線檢查。
func Launch(blocks, lanes int, k Kernel) {
	if blocks < 1 || lanes < 1 {
		panic(fmt.Sprintf("grid: invalid launch shape %dx%d", blocks, lanes))
	}

	var wg sync.WaitGroup
	wg.Add(blocks * lanes)
	for b := 0; b < blocks; b++ {
		g := &Group{
			block: b,
			grid:  blocks,
			lanes: lanes,
			bar:   NewBarrier(lanes),
		}
		body := k(g)
		for l := 0; l < lanes; l++ {
			go func(lane int) {
				defer wg.Done()
				body(lane)
			}(l)
		}
	}
	wg.Wait()
}
