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
	"math"
	"slices"
	"testing"

	"github.com/zintix-labs/gridlab/sdk/grid"
)

func TestCoreDeterminism(t *testing.T) {
	c1 := New(Default().New(7))
	c2 := New(Default().New(7))
	for i := 0; i < 5; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
	if c1.IntN(10) != c2.IntN(10) {
		t.Fatalf("IntN mismatch")
	}
	if c1.UintN(10) != c2.UintN(10) {
		t.Fatalf("UintN mismatch")
	}
	if c1.Float32() != c2.Float32() {
		t.Fatalf("Float32 mismatch")
	}
}

func TestCoreShuffle(t *testing.T) {
	c := New(Default().New(9))
	src := []int{1, 2, 3, 4}
	c.ShuffleInts(src)
	if len(src) != 4 {
		t.Fatalf("unexpected length after shuffle")
	}
	want := []int{1, 2, 3, 4}
	got := slices.Clone(src)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		t.Fatalf("shuffle changed elements: %v", src)
	}
}

// TestFloatRanges 驗證兩個精度入口都落在 [0,1) 且非退化
func TestFloatRanges(t *testing.T) {
	for _, f := range []PRNGFactory{Default(), Compact()} {
		r := f.New(33)
		for i := 0; i < 10000; i++ {
			v64 := r.Float64()
			if v64 < 0 || v64 >= 1 || math.IsNaN(v64) {
				t.Fatalf("Float64 out of range: %v", v64)
			}
			v32 := r.Float32()
			if v32 < 0 || v32 >= 1 {
				t.Fatalf("Float32 out of range: %v", v32)
			}
		}
	}
}

// TestSnapshotRestore 驗證兩種 PRNG 的快照/還原都能重現後續序列
func TestSnapshotRestore(t *testing.T) {
	for name, f := range map[string]PRNGFactory{"pcg64": Default(), "pcg32": Compact()} {
		r := f.New(101)
		for i := 0; i < 17; i++ {
			r.Uint64()
		}
		snap, err := r.Snapshot()
		if err != nil {
			t.Fatalf("[%s] snapshot err: %v", name, err)
		}

		want := make([]uint64, 8)
		for i := range want {
			want[i] = r.Uint64()
		}

		r2 := f.New(0)
		if err := r2.Restore(snap); err != nil {
			t.Fatalf("[%s] restore err: %v", name, err)
		}
		for i := range want {
			if got := r2.Uint64(); got != want[i] {
				t.Fatalf("[%s] restored sequence diverged at %d", name, i)
			}
		}
	}
}

// TestStateArrayDerivation 驗證同 seed 派生相同、不同槽位彼此獨立
func TestStateArrayDerivation(t *testing.T) {
	a := NewStateArray(Default(), 4, 8, 42)
	b := NewStateArray(Default(), 4, 8, 42)
	for i := 0; i < 4; i++ {
		if a.At(i).Uint64() != b.At(i).Uint64() {
			t.Fatalf("slot %d differs across identical arrays", i)
		}
	}

	c := NewStateArray(Default(), 2, 8, 42)
	if c.At(0).Uint64() == c.At(1).Uint64() {
		t.Fatalf("sibling slots emitted identical first value")
	}
}

// TestStateArraySnapshotRoundTrip 驗證整個狀態陣列的快照/還原
func TestStateArraySnapshotRoundTrip(t *testing.T) {
	sa := NewStateArray(Default(), 3, 4, 5)
	sa.At(1).Uint64()
	sa.At(2).Float64()

	snap, err := sa.Snapshot()
	if err != nil {
		t.Fatalf("snapshot err: %v", err)
	}

	want := []uint64{sa.At(0).Uint64(), sa.At(1).Uint64(), sa.At(2).Uint64()}

	sb := NewStateArray(Default(), 3, 4, 999)
	if err := sb.Restore(snap); err != nil {
		t.Fatalf("restore err: %v", err)
	}
	for i, w := range want {
		if got := sb.At(i).Uint64(); got != w {
			t.Fatalf("slot %d diverged after restore", i)
		}
	}

	sc := NewStateArray(Default(), 2, 4, 5)
	if err := sc.Restore(snap); err == nil {
		t.Fatalf("expected block count mismatch error")
	}
}

// TestCollectiveAdvance 驗證集體推進的兩個關鍵性質：
//  1. 每個 lane 取回 leader 填入的那一筆（序列位置 = lane 編號）
//  2. 消耗量固定：推進 k 次後，狀態等同直接抽 k*lanes 筆
func TestCollectiveAdvance(t *testing.T) {
	const blocks = 2
	const lanes = 4
	const rounds = 3

	// 先用一份相同 seed 的陣列算出期望序列
	ref := NewStateArray(Default(), blocks, lanes, 77)
	wantSeq := make([][]float64, blocks)
	for b := 0; b < blocks; b++ {
		wantSeq[b] = make([]float64, lanes*rounds)
		for i := range wantSeq[b] {
			wantSeq[b][i] = ref.At(b).Float64()
		}
	}

	sa := NewStateArray(Default(), blocks, lanes, 77)
	got := make([][]float64, blocks)
	for b := range got {
		got[b] = make([]float64, lanes*rounds)
	}

	grid.Launch(blocks, lanes, func(g *grid.Group) grid.Lane {
		return func(lane int) {
			for r := 0; r < rounds; r++ {
				v := Collective(sa, g, lane, Uniform[float64])
				got[g.Block()][r*lanes+lane] = v
			}
		}
	})

	for b := 0; b < blocks; b++ {
		if !slices.Equal(got[b], wantSeq[b]) {
			t.Errorf("block %d collective sequence mismatch\n got %v\nwant %v", b, got[b], wantSeq[b])
		}
	}
}

// TestUniformDispatch 驗證型別分派各走各的入口
func TestUniformDispatch(t *testing.T) {
	r1 := Default().New(3)
	r2 := Default().New(3)
	if Uniform[float64](r1) != r2.Float64() {
		t.Fatalf("float64 dispatch did not use Float64 entry")
	}
	r3 := Default().New(3)
	r4 := Default().New(3)
	if Uniform[float32](r3) != r4.Float32() {
		t.Fatalf("float32 dispatch did not use Float32 entry")
	}
}

// TestLogNormalMoments 驗證對數常態樣本的中位數落在 exp(mean) 附近
func TestLogNormalMoments(t *testing.T) {
	r := Default().New(8)
	const n = 200000
	const mean = 0.5
	const stddev = 0.25

	samples := make([]float64, n)
	for i := range samples {
		v := LogNormal[float64](r, mean, stddev)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("invalid lognormal sample: %v", v)
		}
		samples[i] = v
	}
	slices.Sort(samples)
	median := samples[n/2]
	if math.Abs(median-math.Exp(mean)) > 0.02 {
		t.Errorf("median %v too far from exp(mean)=%v", median, math.Exp(mean))
	}

	// 單精度入口獨立於雙精度：同 seed 下序列不同
	ra := Default().New(13)
	rb := Default().New(13)
	v32 := LogNormal[float32](ra, 0, 1)
	v64 := LogNormal[float64](rb, 0, 1)
	if float64(v32) == v64 {
		t.Errorf("expected distinct draw paths for float32/float64")
	}
}
