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

package ops

import (
	"math"
	"testing"
)

func TestUniformAndRamp(t *testing.T) {
	u := Uniform(2, 3)
	if len(u) != 6 {
		t.Fatalf("unexpected uniform size: %d", len(u))
	}
	for i, v := range u {
		if v != 1 {
			t.Fatalf("uniform[%d] = %v", i, v)
		}
	}

	r := Ramp(2, 3)
	want := []float64{1, 2, 3, 1, 2, 3}
	for i := range want {
		if r[i] != want[i] {
			t.Fatalf("ramp[%d] = %v, want %v", i, r[i], want[i])
		}
	}
}

func TestOneHot(t *testing.T) {
	w := OneHot(2, 4, 3)
	if Sum(w) != 2 {
		t.Fatalf("unexpected mass: %v", w)
	}
	if w[2] != 1 || w[4+2] != 1 {
		t.Fatalf("mass misplaced: %v", w)
	}

	if z := OneHot(2, 4, 5); Sum(z) != 0 {
		t.Fatalf("out-of-range cat should yield zero matrix, got %v", z)
	}
}

func TestScaleAndBlend(t *testing.T) {
	w := []float64{1, 2, 4}
	Scale(w, 0.5)
	if w[0] != 0.5 || w[1] != 1 || w[2] != 2 {
		t.Fatalf("unexpected scale result: %v", w)
	}

	hi := []float64{10, 10}
	lo := []float64{0, 10}
	dst := make([]float64, 2)
	Blend(dst, hi, lo, 0.25)
	if math.Abs(dst[0]-2.5) > 1e-15 || dst[1] != 10 {
		t.Fatalf("unexpected blend result: %v", dst)
	}

	// 就地混合
	Blend(lo, hi, lo, 0.5)
	if lo[0] != 5 || lo[1] != 10 {
		t.Fatalf("in-place blend diverged: %v", lo)
	}
}
