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

package buf

import (
	"testing"

	"github.com/zintix-labs/gridlab/spec"
)

func testEngineSetting() *spec.EngineSetting {
	return &spec.EngineSetting{
		EngineName:     "demo",
		EngineID:       7,
		Blocks:         2,
		Lanes:          4,
		Precision:      spec.PrecisionFloat64,
		Generator:      spec.GeneratorPCG64,
		DefaultSamples: 1,
	}
}

func TestSampleResultShapeAndReset(t *testing.T) {
	es := testEngineSetting()
	sr := NewSampleResult(es)
	if sr.EngineName != es.EngineName || sr.EngineID != es.EngineID {
		t.Fatalf("unexpected result metadata: %+v", sr)
	}

	sr.SetShape(3, 5, 2, true)
	if sr.Rows != 3 || sr.Cols != 5 || sr.Samples != 2 || !sr.Replacement {
		t.Fatalf("unexpected shape: %+v", sr)
	}
	if len(sr.Categories) != 6 {
		t.Fatalf("expected 6 category slots, got %d", len(sr.Categories))
	}

	for i := range sr.Categories {
		sr.Categories[i] = i + 1
	}
	row1 := sr.RowCategories(1)
	if len(row1) != 2 || row1[0] != 3 || row1[1] != 4 {
		t.Fatalf("unexpected row slice: %v", row1)
	}

	sr.State.StartStateSnap = []byte{1}
	sr.State.AfterStateSnap = []byte{2}
	sr.Reset()
	if sr.Rows != 0 || len(sr.Categories) != 0 || sr.Replacement {
		t.Fatalf("result not reset: %+v", sr)
	}
	if sr.State.StartStateSnap != nil || sr.State.AfterStateSnap != nil {
		t.Fatalf("state snapshots not cleared")
	}
}

func TestSampleResultCapacityReuse(t *testing.T) {
	sr := NewSampleResult(testEngineSetting())
	sr.SetShape(10, 3, 7, false)
	base := &sr.Categories[0]

	sr.Reset()
	sr.SetShape(5, 3, 2, false)
	if &sr.Categories[0] != base {
		t.Fatalf("smaller shape should reuse the allocated array")
	}
}

func TestSampleRequestSetShape(t *testing.T) {
	req := &SampleRequest{}
	w := req.SetShape(2, 3)
	if len(w) != 6 || req.Rows != 2 || req.Cols != 3 {
		t.Fatalf("unexpected shape: %+v", req)
	}
	for i := range w {
		w[i] = float64(i)
	}

	// 縮小形狀重用同一塊底層陣列
	base := &req.Weights[0]
	w2 := req.SetShape(1, 4)
	if len(w2) != 4 || &w2[0] != base {
		t.Fatalf("expected capacity reuse on shrink")
	}

	req.Reset()
	if len(req.Weights) != 0 || req.Rows != 0 || req.Preset != "" {
		t.Fatalf("request not reset: %+v", req)
	}
}
