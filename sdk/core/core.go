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

package core

import "math"

// PRNG 定義取樣引擎所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 為什麼同時要求 Float64 與 Float32，而不是讓呼叫端自己把 Float64 轉窄？
//
//   - 單精度與雙精度是兩個「獨立的產生入口」：Float64 以 53-bit mantissa
//     生成 [0,1)，Float32 以 24-bit mantissa 生成 [0,1)。把 Float64 的結果
//     轉型成 float32 會經過一次有損捨入，得到的分佈與原生 24-bit 入口不同，
//     也讓單精度 kernel 的輸出無法跨實作重現。
//   - 承上，kernel 對精度的選擇是型別層級的 (float32 vs float64 實例化)，
//     對應的亂數入口也必須是型別層級的，由 Uniform / LogNormal 統一分派。
//
// 為什麼要求 Uint64 / UintN / IntN 而不是只要求 Uint64？
//
//   - 有些 PRNG 的原生輸出寬度是 32-bit（例如以 uint32 為核心的 PCG32），
//     強迫全部走 uint64 會把 32-bit 友善的實作退化成較慢的寫法。
//   - bounded 生成（UintN/IntN）各家有不同的無偏策略，交由 PRNG 自行選擇。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數（53-bit 精度）。
	Float64() float64
	// Float32 回傳 [0,1) 的浮點亂數（24-bit 精度，獨立入口、非 Float64 轉窄）。
	Float32() float32
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。
	//
	// 合約（很重要）：在同一個實作與同一個版本下，New(seed) 必須是「決定性」的——
	// 也就是相同的 seed 必須產生相同的初始內部狀態與輸出序列。
	//
	// 為什麼只保留 New？
	//   - Gridlab 需要可重現（審計/回放/跨 Device 的狀態陣列派生）。
	//   - seed 的生命週期由 Device 統一管理：外部未提供時由 Device 產生並保存
	//     baseSeed，狀態陣列的每個 block 槽位再由 baseSeed 以固定算法派生子 seed。
	//   - 因此引擎內部永遠不需要「不帶 seed 的 New()」，避免行為不可重現。
	New(int64) PRNG
}

// DefaultPRNG 以 PCG64 實作預設的 PRNGFactory。
type DefaultPRNG struct{}

// New 滿足合約
func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// CompactPRNG 以 PCG32 實作 PRNGFactory；狀態較小（128-bit），
// 適合 block 數量極大的狀態陣列。
type CompactPRNG struct{}

// New 滿足合約
func (c *CompactPRNG) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

func Compact() *CompactPRNG {
	return &CompactPRNG{}
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Pick 從切片中等機率挑出一個元素並回傳其值；空切片回傳 -1。
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	return src[c.IntN(len(src))]
}

// NormFloat64 回傳標準常態 N(0,1) 亂數。
//
// 採 Box-Muller：每次呼叫固定消耗兩筆 Float64，不快取第二個值。
// 消耗量固定讓上層（重播、審計）可以精準推算亂數流水位置，
// 這比 ziggurat 類演算法的「平均較快但消耗不定」更重要。
func (c *Core) NormFloat64() float64 {
	u1 := c.Float64()
	u2 := c.Float64()
	if u1 < 1e-300 {
		u1 = 1e-300
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// ShuffleInts 使用 Fisher-Yates (亦稱 Knuth Shuffle) 演算法
// 對[]int進行「就地 (In-place)」隨機重排。
//
// 演算法特性：
//
//  1. 公平性 (Unbiased)：
//     此算法保證所有可能的 N! 種排列組合出現的機率是嚴格相等的 (1/N!)。
//     這解決了傳統 "Naive Shuffle" (每個位置都隨機跟任意位置交換) 導致的機率偏差問題。
//
//  2. 效能 (High Performance)：
//     - 時間複雜度：O(N)，只需要對陣列進行一次線性掃描。
//     - 空間複雜度：O(1)，直接在原記憶體位置交換，實現零配置 (Zero Allocation)。
func (c *Core) ShuffleInts(src []int) {
	if len(src) <= 1 {
		return
	}

	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}
