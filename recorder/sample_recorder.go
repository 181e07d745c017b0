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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/buf"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// SampleRecorder 抽樣紀錄員
//
// SampleRecorder 負責累積抽樣結果的 category 計數，並透過Done輸出統計報表
type SampleRecorder struct {
	EngineName string
	EngineID   spec.EID
	Rows       int
	Cols       int
	Alpha      float64
	weights    []float64
	Basic      *BasicRecord
	Tally      *TallyRecord
}

// BasicRecord 基本紀錄
type BasicRecord struct {
	Rounds  int
	Draws   int
	Invalid int
}

// TallyRecord category 落點統計
//
// 紀錄時只紀錄int資訊
type TallyRecord struct {
	Counts   []int // rows*cols
	RowDraws []int
	Invalid  []int
}

func NewSampleRecorder(name string, id spec.EID, weights []float64, rows, cols int, alpha float64) (*SampleRecorder, error) {
	s := new(SampleRecorder)

	if rows < 1 || cols < 1 {
		return s, errs.NewFatal(fmt.Sprintf("shape err %dx%d", rows, cols))
	}

	if len(weights) != rows*cols {
		return s, errs.NewFatal(fmt.Sprintf("weights length err: got %d want %d", len(weights), rows*cols))
	}

	for _, w := range weights {
		if w < 0 {
			return s, errs.NewFatal(fmt.Sprintf("weights must not contain negative values, got: %v", w))
		}
	}
	// 通過valid
	s.EngineName = name
	s.EngineID = id
	s.Rows = rows
	s.Cols = cols
	s.Alpha = alpha
	s.weights = weights
	s.Basic = new(BasicRecord)
	s.Tally = newTallyRecord(rows, cols)

	return s, nil
}

func MergeSampleRecorder(r []*SampleRecorder) (*SampleRecorder, error) {
	r0 := r[0]
	s, err := NewSampleRecorder(r0.EngineName, r0.EngineID, r0.weights, r0.Rows, r0.Cols, r0.Alpha)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.EngineName != r0.EngineName {
			return s, errs.NewFatal("merge sample record err : different engine name")
		}
		if v.Rows != r0.Rows || v.Cols != r0.Cols {
			return s, errs.NewFatal("merge sample record err : different shape")
		}
		s.Basic.Rounds += v.Basic.Rounds
		s.Basic.Draws += v.Basic.Draws
		s.Basic.Invalid += v.Basic.Invalid

		// 整合Tally
		for i := range len(v.Tally.Counts) {
			s.Tally.Counts[i] += v.Tally.Counts[i]
		}
		for i := range len(v.Tally.RowDraws) {
			s.Tally.RowDraws[i] += v.Tally.RowDraws[i]
			s.Tally.Invalid[i] += v.Tally.Invalid[i]
		}
	}
	return s, nil
}

// Record 以單次 SampleResult 更新計數
//
// category 為 1-based。超出 [1, cols] 的值計入 Invalid 並使該 row 失敗
func (s *SampleRecorder) Record(sr *buf.SampleResult) {
	cols := s.Cols
	for r := 0; r < sr.Rows; r++ {
		cats := sr.RowCategories(r)
		off := r * cols
		for _, cat := range cats {
			if cat < 1 || cat > cols {
				s.Tally.Invalid[r]++
				s.Basic.Invalid++
				continue
			}
			s.Tally.Counts[off+cat-1]++
			s.Tally.RowDraws[r]++
			s.Basic.Draws++
		}
	}
	s.Basic.Rounds++
}

func (s *SampleRecorder) Done() *stats.VerifyReport {
	report := stats.NewVerifyReport(s.EngineName, s.EngineID, s.weights, s.Rows, s.Cols, s.Alpha)
	report.Tally.Counts = s.Tally.Counts
	report.Tally.RowDraws = s.Tally.RowDraws
	report.Tally.Invalid = s.Tally.Invalid
	report.Summary.Rounds = s.Basic.Rounds
	return report
}

func newTallyRecord(rows, cols int) *TallyRecord {
	d := new(TallyRecord)
	d.Counts = make([]int, rows*cols)
	d.RowDraws = make([]int, rows)
	d.Invalid = make([]int, rows)
	return d
}
