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

import (
	"errors"
	"math"

	"github.com/zintix-labs/gridlab/sdk/grid"
)

// StateArray 是「每個 block 一個產生器狀態」的亂數狀態陣列。
//
// 這是取樣 kernel 的亂數來源：block 在 kernel 執行期間獨占自己的槽位，
// 槽位之間互不影響，因此跨 block 不需要任何同步。
//
// 集體推進 (collective advance)：狀態的每一次推進都以「整個 block」為單位——
// 一次 Collective 呼叫固定消耗 lanes 筆亂數，無論幾個 lane 真的使用結果。
// 這讓輸出序列只由 (seed, 形狀, 呼叫順序) 決定，與哪些 lane 消費無關，
// 行為才能跨後端重現。所有 lane 都必須參與每一次 Collective 呼叫，
// 缺席會讓整個 block 卡在屏障上。
type StateArray struct {
	seed   int64
	cores  []*Core
	voice  [][]float64 // 每個 block 的 lane 廣播緩衝
	widths int
}

// NewStateArray 以 baseSeed 派生 blocks 個子 seed，建立狀態陣列。
//
// lanes 為對應 Launch 形狀的 lane 數，決定每次集體推進的消耗量。
// 相同 (factory, blocks, lanes, seed) 必然產生相同的狀態陣列。
func NewStateArray(f PRNGFactory, blocks, lanes int, seed int64) *StateArray {
	if blocks < 1 || lanes < 1 {
		panic("core: state array shape must be positive")
	}
	sa := &StateArray{
		seed:   seed,
		cores:  make([]*Core, blocks),
		voice:  make([][]float64, blocks),
		widths: lanes,
	}
	for b := 0; b < blocks; b++ {
		sa.cores[b] = New(f.New(deriveSeed(seed, b)))
		sa.voice[b] = make([]float64, lanes)
	}
	return sa
}

// Blocks 回傳槽位數量（等於可支援的 block 數）。
func (sa *StateArray) Blocks() int { return len(sa.cores) }

// LaneWidth 回傳每次集體推進填入的 lane 數。
func (sa *StateArray) LaneWidth() int { return sa.widths }

// Seed 回傳建立時的 baseSeed，供審計與回放。
func (sa *StateArray) Seed() int64 { return sa.seed }

// At 回傳指定槽位的產生器。
//
// 僅供擁有該槽位的 block（或單執行緒的前置作業，例如 dispatch 預填
// uniform）使用；kernel 執行期間其他 block 不得觸碰。
func (sa *StateArray) At(b int) *Core { return sa.cores[b] }

// Collective 執行一次集體推進：leader (lane 0) 以 draw 依序為每個 lane
// 產生一筆值寫入廣播緩衝，屏障後每個 lane 取回自己槽位的值。
//
// 兩道屏障缺一不可：第一道保證所有 lane 看得到完整的廣播結果，
// 第二道保證緩衝在下一次推進覆寫前已經沒有讀取者。
//
// float32 的值以 float64 槽位廣播（加寬無損，取回時轉窄還原原值）。
func Collective[F grid.Floaters](sa *StateArray, g *grid.Group, lane int, draw func(RAND) F) F {
	buf := sa.voice[g.Block()]
	if lane == 0 {
		rng := sa.cores[g.Block()]
		for i := range buf {
			buf[i] = float64(draw(rng))
		}
	}
	g.Sync()
	v := F(buf[lane])
	g.Sync()
	return v
}

// Uniform 依型別分派的 [0,1) 均勻抽樣：float32 走 Float32 入口（24-bit），
// float64 走 Float64 入口（53-bit）。分派在實例化時就定案，熱路徑無反射。
func Uniform[F grid.Floaters](r RAND) F {
	var f F
	switch any(f).(type) {
	case float32:
		return F(r.Float32())
	default:
		return F(r.Float64())
	}
}

// LogNormal 依型別分派的對數常態抽樣：exp(mean + stddev * z)，
// z 由 Box-Muller 轉換取得，每筆固定消耗兩筆均勻亂數。
// 固定消耗量是集體推進的前提；拒絕式方法（如 polar method）
// 的消耗量不定，會讓序列位置依抽到的值而漂移，不可採用。
//
// 單精度實例化從 Float32 入口取均勻值（加寬到 float64 做超越函數運算，
// 無損），最後一次捨入回 float32；雙精度全程 float64，無轉窄。
func LogNormal[F grid.Floaters](r RAND, mean, stddev float64) F {
	var f F
	var u1, u2 float64
	switch any(f).(type) {
	case float32:
		u1 = float64(r.Float32())
		u2 = float64(r.Float32())
	default:
		u1 = r.Float64()
		u2 = r.Float64()
	}
	// 1-u1 將 [0,1) 映到 (0,1]，避免 log(0)
	z := math.Sqrt(-2*math.Log(1-u1)) * math.Cos(2*math.Pi*u2)
	return F(math.Exp(mean + stddev*z))
}

// Snapshot 序列化整個狀態陣列：
//
//	u64 blocks || 每槽位 ( u64 len || snapshot bytes )
//
// 與 Restore 成對，提供 Device 級的回放與審計。
func (sa *StateArray) Snapshot() ([]byte, error) {
	out := AppendUint64(make([]byte, 0, 16*len(sa.cores)), uint64(len(sa.cores)))
	for _, c := range sa.cores {
		snap, err := c.Snapshot()
		if err != nil {
			return nil, err
		}
		out = AppendUint64(out, uint64(len(snap)))
		out = append(out, snap...)
	}
	return out, nil
}

// Restore 以 Snapshot 的輸出還原全部槽位；槽位數量不符視為格式錯誤。
func (sa *StateArray) Restore(data []byte) error {
	if len(data) < 8 {
		return errors.New("core: state array snapshot truncated")
	}
	blocks := uint64FromBytes(data[:8])
	if blocks != uint64(len(sa.cores)) {
		return errors.New("core: state array snapshot block count mismatch")
	}
	data = data[8:]
	for _, c := range sa.cores {
		if len(data) < 8 {
			return errors.New("core: state array snapshot truncated")
		}
		n := uint64FromBytes(data[:8])
		data = data[8:]
		if uint64(len(data)) < n {
			return errors.New("core: state array snapshot truncated")
		}
		if err := c.Restore(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	if len(data) != 0 {
		return errors.New("core: state array snapshot has trailing bytes")
	}
	return nil
}

// deriveSeed 由 baseSeed 派生第 b 個槽位的子 seed（splitmix64 黃金比例步進）。
func deriveSeed(seed int64, b int) int64 {
	x := splitmix64(uint64(seed) + uint64(b)*0x9e3779b97f4a7c15)
	return int64(x &^ (1 << 63))
}
