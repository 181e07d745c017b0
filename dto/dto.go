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

package dto

import (
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/buf"
	"github.com/zintix-labs/gridlab/spec"
)

type SampleResult struct {
	EngineName  string      `json:"engine"`       // 引擎名稱
	EngineID    spec.EID    `json:"eid"`          // 引擎編號
	Rows        int         `json:"rows"`         // 分佈列數
	Cols        int         `json:"cols"`         // 每列類別數
	Samples     int         `json:"samples"`      // 每列樣本數
	Replacement bool        `json:"replacement"`  // 放回式與否
	Categories  [][]int     `json:"categories"`   // rows x samples，1-based 類別編號
	State       SampleState `json:"sample_state"` // 引擎狀態
}

// SampleState 攜帶一次取樣前後的 StateArray 快照（Base64URL）。
//
// start_b64u 可作為下一次請求的 start_state.start_b64u 以重現本次結果（回放）；
// after_b64u 可作為下一次請求的起點以延續亂數流水（續抽）。
type SampleState struct {
	StartStateB64U string `json:"start_b64u"` // 必回
	AfterStateB64U string `json:"after_b64u"` // 必回
}

// NewSampleResultDTO 把內部結果緩衝轉成對外輸出的 DTO。
//
// buf.SampleResult 的底層陣列會被 Device 重用，這裡做一次性深拷貝，
// DTO 可安全離開臨界區。
func NewSampleResultDTO(sr *buf.SampleResult) (SampleResult, error) {
	if sr == nil {
		return SampleResult{}, errs.NewWarn("sample result is nil")
	}
	state := SampleState{
		StartStateB64U: corefmt.EncodeBase64URL(sr.State.StartStateSnap),
		AfterStateB64U: corefmt.EncodeBase64URL(sr.State.AfterStateSnap),
	}

	dto := SampleResult{
		EngineName:  sr.EngineName,
		EngineID:    sr.EngineID,
		Rows:        sr.Rows,
		Cols:        sr.Cols,
		Samples:     sr.Samples,
		Replacement: sr.Replacement,
		State:       state,
	}

	if sr.Rows > 0 && sr.Samples > 0 {
		flat := make([]int, len(sr.Categories))
		copy(flat, sr.Categories)
		dto.Categories = make([][]int, sr.Rows)
		for r := 0; r < sr.Rows; r++ {
			dto.Categories[r] = flat[r*sr.Samples : (r+1)*sr.Samples]
		}
	}

	return dto, nil
}

// FillResult 對外輸出的對數常態填充結果。
type FillResult struct {
	EngineName string      `json:"engine"`
	EngineID   spec.EID    `json:"eid"`
	Count      int         `json:"count"`
	Mean       float64     `json:"mean"`
	Stddev     float64     `json:"stddev"`
	Values     []float64   `json:"values"`
	State      SampleState `json:"sample_state"`
}
