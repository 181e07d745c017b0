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
	"math"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/buf"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/sampler"
	"github.com/zintix-labs/gridlab/spec"
)

// enginePath 是精度定案後的取樣管線。
//
// Device 建立時依 EngineSetting.Precision 實例化一次之後熱路徑不再做
// 型別分派。kernel 內部沒有錯誤路徑，所以管線方法也不回傳 error：
// 參數合法性一律在發射前由 Device 的邊界檢查把關。
type enginePath interface {
	sample(sa *core.StateArray, blocks, lanes int, weights []float64, rows, cols, samples int, replacement bool, out []int)
	fill(sa *core.StateArray, blocks, lanes int, mean, stddev float64, out []float64)
}

func newEnginePath(p spec.Precision) enginePath {
	if p == spec.PrecisionFloat32 {
		return &pipeline[float32]{}
	}
	return &pipeline[float64]{}
}

// pipeline 持有單一精度的可重用工作區（熱路徑，跨請求重用、只長不縮）。
//
//   - mat：rows*cols 的權重工作區，每次都從請求重新填入。
//   - prefix：rows*cols 的正規化/前綴和工作區。
//   - dest：rows*samples 的 kernel 輸出區（值為 1-based 類別編號）。
type pipeline[F grid.Floaters] struct {
	mat    []F
	prefix []F
	dest   []F
}

// sample 發射一次完整取樣並把類別編號寫進 out（長度 rows*samples）。
//
// 路徑選擇：
//   - samples == 1：單樣本引擎。先以 FillUniform 對每列預填一筆均勻值，
//     再由 SampleOnce 就地覆寫成類別編號（放回與否在單樣本下無差異）。
//   - 放回式：正規化一次、前綴和一次、單次發射抽完全部樣本。
//   - 不放回式：每個樣本一輪。被抽中的權重由 kernel 在原矩陣上歸零，
//     所以每輪都要從原矩陣重新複製、正規化並重算前綴和。
func (p *pipeline[F]) sample(sa *core.StateArray, blocks, lanes int, weights []float64, rows, cols, samples int, replacement bool, out []int) {
	cells := rows * cols
	p.mat = grow(p.mat, cells)
	for i, w := range weights {
		p.mat[i] = F(w)
	}

	if samples == 1 {
		p.dest = grow(p.dest, rows)
		d := p.dest[:rows]
		grid.Launch(blocks, lanes, sampler.FillUniform(sa, d))
		grid.Launch(blocks, lanes, sampler.SampleOnce(d, p.mat, rows, cols))
		for row := 0; row < rows; row++ {
			out[row] = int(d[row])
		}
		return
	}

	p.prefix = grow(p.prefix, cells)
	p.dest = grow(p.dest, rows*samples)
	d := p.dest[:rows*samples]

	if replacement {
		grid.Launch(blocks, lanes, sampler.RenormRows(p.mat, rows, cols))
		grid.Launch(blocks, lanes, sampler.CumsumRows(p.prefix, p.mat, rows, cols))
		grid.Launch(blocks, lanes, sampler.SampleReplace(sa, d, p.prefix, rows, cols, samples))
	} else {
		for s := 0; s < samples; s++ {
			copy(p.prefix, p.mat[:cells])
			grid.Launch(blocks, lanes, sampler.RenormRows(p.prefix, rows, cols))
			grid.Launch(blocks, lanes, sampler.CumsumRows(p.prefix, p.prefix, rows, cols))
			grid.Launch(blocks, lanes, sampler.SampleNoReplace(sa, d, p.prefix, p.mat, rows, cols, samples, s))
		}
	}

	for i := range d {
		out[i] = int(d[i])
	}
}

// fill 以對數常態亂數填滿 out；精度（抽號入口）由 F 決定，
// 輸出一律加寬為 float64。
func (p *pipeline[F]) fill(sa *core.StateArray, blocks, lanes int, mean, stddev float64, out []float64) {
	p.dest = grow(p.dest, len(out))
	d := p.dest[:len(out)]
	grid.Launch(blocks, lanes, sampler.FillLogNormal(sa, d, mean, stddev))
	for i, v := range d {
		out[i] = float64(v)
	}
}

func grow[F grid.Floaters](s []F, n int) []F {
	if cap(s) < n {
		return make([]F, n)
	}
	return s[:n]
}

// run 執行一次完整取樣：套用 preset、補上預設樣本數、邊界檢查、
// 發射 kernel 並把結果寫進 d.SampleResult（可重用緩衝）。
//
// 所有錯誤都發生在消耗任何亂數之前，呼叫端可以放心在錯誤時不處理狀態回滾。
func (d *Device) run(req *buf.SampleRequest) error {
	if err := d.applyPreset(req); err != nil {
		return err
	}
	if req.Samples == 0 {
		req.Samples = d.es.DefaultSamples
	}
	if err := d.validSample(req); err != nil {
		return err
	}

	d.SampleResult.SetShape(req.Rows, req.Cols, req.Samples, req.Replacement)
	d.path.sample(d.states, d.es.Blocks, d.es.Lanes, req.Weights, req.Rows, req.Cols, req.Samples, req.Replacement, d.SampleResult.Categories)
	return nil
}

// applyPreset 以 bank 內的預載矩陣取代請求權重。
//
// 請求的 rows/cols 可以缺省（0 = 採用矩陣形狀）；有帶值時必須與矩陣
// 形狀一致。bank 矩陣為唯讀共用，管線在改寫前一律先複製。
func (d *Device) applyPreset(req *buf.SampleRequest) error {
	if req.Preset == "" {
		return nil
	}
	if d.banks == nil {
		return errs.NewWarn("engine has no bank loaded")
	}
	m, ok := d.banks.Matrix(req.Preset)
	if !ok {
		return errs.Warnf("preset %q not found in bank", req.Preset)
	}
	if (req.Rows != 0 && req.Rows != m.Rows) || (req.Cols != 0 && req.Cols != m.Cols) {
		return errs.Warnf("preset %q shape %dx%d does not match request %dx%d", req.Preset, m.Rows, m.Cols, req.Rows, req.Cols)
	}
	req.Rows = m.Rows
	req.Cols = m.Cols
	req.Weights = m.Weights
	return nil
}

// validSample 在發射 kernel 之前把關呼叫端合約（形狀、容量上限、權重域）。
// kernel 內部沒有錯誤路徑，這裡是最後一道防線。
func (d *Device) validSample(req *buf.SampleRequest) error {
	if req.Rows < 1 || req.Cols < 1 {
		return errs.Warnf("invalid shape %dx%d", req.Rows, req.Cols)
	}
	if d.es.MaxRows > 0 && req.Rows > d.es.MaxRows {
		return errs.Warnf("rows %d exceeds engine limit %d", req.Rows, d.es.MaxRows)
	}
	if d.es.MaxCategories > 0 && req.Cols > d.es.MaxCategories {
		return errs.Warnf("cols %d exceeds engine limit %d", req.Cols, d.es.MaxCategories)
	}
	if req.Samples < 1 {
		return errs.Warnf("samples must > 0, got %d", req.Samples)
	}
	if d.es.MaxSamples > 0 && req.Samples > d.es.MaxSamples {
		return errs.Warnf("samples %d exceeds engine limit %d", req.Samples, d.es.MaxSamples)
	}
	if !req.Replacement && req.Samples > req.Cols {
		return errs.Warnf("cannot draw %d samples without replacement from %d categories", req.Samples, req.Cols)
	}
	if len(req.Weights) != req.Rows*req.Cols {
		return errs.Warnf("weights length err: got %d want %d", len(req.Weights), req.Rows*req.Cols)
	}
	for i, w := range req.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return errs.Warnf("weights[%d] must be finite and non-negative, got %v", i, w)
		}
	}
	return nil
}

// validFill 把關對數常態填充的呼叫端合約。
func (d *Device) validFill(count int, mean, stddev float64) error {
	if count < 1 {
		return errs.Warnf("count must > 0, got %d", count)
	}
	if count > maxFillCount {
		return errs.Warnf("count %d exceeds limit %d", count, maxFillCount)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return errs.Warnf("mean must be finite, got %v", mean)
	}
	if stddev < 0 || math.IsNaN(stddev) || math.IsInf(stddev, 0) {
		return errs.Warnf("stddev must be finite and non-negative, got %v", stddev)
	}
	return nil
}

const maxFillCount = 1 << 24
