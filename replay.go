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

package gridlab

import (
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/stats"
)

// Replay
//
// 只提供給Dev模式使用的重播器，單線(不併發)，重點在可審計、可重現
type Replay struct {
	vf       *Verifier // 只開放Verify功能
	dev      *Device   // 同步seed
	before   []byte
	after    []byte
	before64 string
	after64  string
}

type ReplaySampleReport struct {
	Before     string             `json:"start_b64u"`
	After      string             `json:"after_b64u"`
	Round      int                `json:"round"`
	Rows       int                `json:"rows"`
	Cols       int                `json:"cols"`
	Samples    int                `json:"samples"`
	TotalDraws int                `json:"total_draws"`
	Invalid    int                `json:"invalid"`
	Results    []dto.SampleResult `json:"results"`
}

func (d *Replay) sampleOne(weights []float64, rows, cols, samples int, replacement bool) (dto.SampleResult, error) {
	req := &dto.SampleRequest{
		EngineName:  d.dev.engineName,
		EngineID:    d.dev.engineID,
		Rows:        rows,
		Cols:        cols,
		Samples:     samples,
		Replacement: &replacement,
		Weights:     weights,
	}
	return d.dev.Sample(req)
}

func (d *Replay) Samples(weights []float64, rows, cols, samples int, replacement bool, round int) (ReplaySampleReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return ReplaySampleReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}

	// sample
	ds := make([]dto.SampleResult, 0, round)
	for range round {
		result, err := d.sampleOne(weights, rows, cols, samples, replacement)
		if err != nil {
			return ReplaySampleReport{}, errs.Wrap(err, "sample error")
		}
		ds = append(ds, result)
	}
	// 統計
	draws, invalid := 0, 0
	for _, r := range ds {
		for _, row := range r.Categories {
			for _, cat := range row {
				draws++
				if cat < 1 || cat > r.Cols {
					invalid++
				}
			}
		}
	}

	de := ReplaySampleReport{
		Before:     ds[0].State.StartStateB64U,
		After:      ds[len(ds)-1].State.AfterStateB64U,
		Round:      len(ds),
		Rows:       rows,
		Cols:       cols,
		Samples:    samples,
		TotalDraws: draws,
		Invalid:    invalid,
		Results:    ds,
	}
	return de, nil
}

func (d *Replay) RestoreSamples(be64 string, weights []float64, rows, cols, samples int, replacement bool, round int) (ReplaySampleReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return ReplaySampleReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	// 解析seed
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return ReplaySampleReport{}, errs.NewWarn("decode seed failed" + err.Error())
	}
	// restore
	if err := d.dev.RestoreStates(be); err != nil {
		return ReplaySampleReport{}, errs.NewWarn("device restore failed")
	}
	return d.Samples(weights, rows, cols, samples, replacement, round)
}

type ReplayVerifyReport struct {
	Before string              `json:"before"`
	After  string              `json:"after"`
	Stat   *stats.VerifyReport `json:"statistic"`
}

func (d *Replay) Verify(weights []float64, rows, cols, samples int, replacement bool, round int) (ReplayVerifyReport, error) {
	// 先存 before 快照
	v := d.vf.dBuf[0]
	be, err := v.SnapshotStates()
	if err != nil {
		return ReplayVerifyReport{}, err
	}
	be64 := corefmt.EncodeBase64URL(be)
	d.before = be
	d.before64 = be64

	// Verify
	if round < 1 || round > 3_000_000 {
		return ReplayVerifyReport{}, errs.NewWarn("round must be between 1 and 3,000,000")
	}
	stat, _, err := d.vf.Verify(weights, rows, cols, samples, replacement, round, false)
	if err != nil {
		return ReplayVerifyReport{}, errs.Wrap(err, "verify failed")
	}

	// 再存 after 快照
	af, err := v.SnapshotStates()
	if err != nil {
		return ReplayVerifyReport{}, err
	}
	af64 := corefmt.EncodeBase64URL(af)
	d.after = af
	d.after64 = af64

	return ReplayVerifyReport{
		Before: be64,
		After:  af64,
		Stat:   stat,
	}, nil
}

func (d *Replay) RestoreVerify(be64 string, weights []float64, rows, cols, samples int, replacement bool, round int) (ReplayVerifyReport, error) {
	// 反解析 string -> []byte
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return ReplayVerifyReport{}, errs.Wrap(err, "decode seed failed")
	}
	d.before = be
	d.before64 = be64

	// restore
	if err := d.vf.dBuf[0].RestoreStates(be); err != nil {
		return ReplayVerifyReport{}, errs.Wrap(err, "restore verifier failed")
	}

	return d.Verify(weights, rows, cols, samples, replacement, round)
}
