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

package gen

import (
	"fmt"
	"io/fs"

	"github.com/zintix-labs/gridlab/bank"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/calc"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/ops"
	"gonum.org/v1/gonum/stat"
)

// Basis 一列的正/負樣本池：Mean 高於目標與低於目標的形狀各收一池，
// 之後用線性混合在兩池之間精確命中 target_mean。
type Basis struct {
	Exp float64
	Pos []*Row
	Neg []*Row
}

// Designer 依 MatrixSetting 生成一張權重矩陣
type Designer struct {
	cfg   *MatrixSetting
	plans []*rowPlan
}

// rowPlan 一個 RowSetting 的執行狀態
type rowPlan struct {
	name   string
	cfg    *RowSetting
	gener  RowGenerator
	fail   int
	skew   []float64
	filter func(*rowPlan, *Row) bool
}

func NewDesigner(ms *MatrixSetting) (*Designer, error) {
	if ms == nil {
		return nil, errs.NewWarn("matrix setting is required")
	}
	if err := ms.validate(); err != nil {
		return nil, err
	}
	d := &Designer{
		cfg:   ms,
		plans: make([]*rowPlan, len(ms.Rows)),
	}
	for i, rs := range ms.Rows {
		p, err := newRowPlan(rs)
		if err != nil {
			return nil, err
		}
		d.plans[i] = p
	}
	return d, nil
}

// NewDesignerFS 從檔案系統讀取 YAML 設計圖建立 Designer
func NewDesignerFS(cfg fs.FS, name string) (*Designer, error) {
	raw, err := fs.ReadFile(cfg, name)
	if err != nil {
		return nil, err
	}
	ms, err := getMatrixSettingByYaml(raw)
	if err != nil {
		return nil, err
	}
	return NewDesigner(ms)
}

func newRowPlan(rs *RowSetting) (*rowPlan, error) {
	g, err := GetRowGenerator(rs.ShapeCfg.Method, rs)
	if err != nil {
		return nil, err
	}
	p := &rowPlan{
		name:   rs.RowName,
		cfg:    rs,
		gener:  g,
		skew:   rs.QualityEval.MeanMedianRatio[:],
		filter: medianFilter,
	}
	return p, nil
}

// Rows 回傳矩陣的總列數（Σ repeat）
func (d *Designer) Rows() int {
	total := 0
	for _, p := range d.plans {
		total += p.cfg.Repeat
	}
	return total
}

// Cols 回傳矩陣的類別數（support 長度，全列一致）
func (d *Designer) Cols() int {
	return len(d.cfg.Rows[0].Support)
}

// Design 執行完整的生成流程並回傳權重矩陣。
// 每列總和為 1；同一個 RowSetting 的 repeat 列共用一份 basis。
func (d *Designer) Design(c *core.Core) (*bank.Matrix, error) {
	cols := d.Cols()
	weights := make([]float64, 0, d.Rows()*cols)

	// 1. 各列生成 basis
	fmt.Println("step1: basis")
	bases := make([]*Basis, len(d.plans))
	for i, p := range d.plans {
		fmt.Printf("\rrow %s: make basis...", p.name)
		base, err := p.makeBasis(c)
		if err != nil {
			return nil, err
		}
		bases[i] = base
	}

	// 2. 混合命中目標並過品質窗
	fmt.Println("step2: fit rows")
	for i, p := range d.plans {
		for n := 0; n < p.cfg.Repeat; n++ {
			row, err := p.fitRow(bases[i], c)
			if err != nil {
				return nil, err
			}
			weights = append(weights, row.Weights...)
		}
		fmt.Printf("\r")
	}

	return &bank.Matrix{
		Name:    d.cfg.MatrixName,
		Rows:    d.Rows(),
		Cols:    cols,
		Weights: weights,
	}, nil
}

// makeBasis 灑形狀直到正/負兩池都滿
func (p *rowPlan) makeBasis(c *core.Core) (*Basis, error) {
	posMax := int(p.cfg.Basis)
	negMax := int(p.cfg.Basis)
	exp := p.cfg.TargetMean

	result := &Basis{
		Exp: exp,
		Pos: make([]*Row, 0, posMax),
		Neg: make([]*Row, 0, negMax),
	}
	if ok := p.gener.Set(p.cfg.Support); !ok {
		return nil, errs.Warnf("row %s gen basis failed: can not set support", p.name)
	}
	count := uint64(0)
	for range maxTry {
		row, err := p.gener.Gen(c)
		if err != nil {
			return nil, err
		}
		count++
		if (len(result.Pos) < posMax) && (row.Mean >= exp) {
			result.Pos = append(result.Pos, row)
		}
		if (len(result.Neg) < negMax) && (row.Mean <= exp) {
			result.Neg = append(result.Neg, row)
		}
		if (len(result.Pos) >= posMax) && (len(result.Neg) >= negMax) {
			fmt.Printf("\r")
			return result, nil
		}
		if count%10 == 0 {
			fmt.Printf("\rrow %s pos: %d neg: %d", p.name, len(result.Pos), len(result.Neg))
		}
	}
	return nil, errs.Warnf("row %s gen basis failed: pos %d/%d neg %d/%d after %d tries, "+
		"target_mean likely unreachable with current shape cfg",
		p.name, len(result.Pos), posMax, len(result.Neg), negMax, maxTry)
}

// fitRow 反覆混合直到過品質窗
func (p *rowPlan) fitRow(bs *Basis, c *core.Core) (*Row, error) {
	count := 0
	for count < maxTry {
		row := p.fitMean(bs, c)
		count++
		if row == nil {
			fmt.Printf("\r.")
			continue
		}
		if p.filter(p, row) && p.stdFilter(row, count) {
			return row, nil
		}
		if count%100 == 0 {
			fmt.Printf("\rrow %s: try %d", p.name, count)
		}
	}
	return nil, errs.Warnf("row %s rows not collect full", p.name)
}

// fitMean 隨機取一正一負線性混合，讓 Mean 精確等於目標
func (p *rowPlan) fitMean(bs *Basis, c *core.Core) *Row {
	for range maxTry {
		pos := bs.Pos[c.IntN(len(bs.Pos))]
		neg := bs.Neg[c.IntN(len(bs.Neg))]
		diff := pos.Mean - neg.Mean
		if diff == 0 {
			return pos
		}
		if diff < 0 {
			pos, neg = neg, pos
		}
		pp := (bs.Exp - neg.Mean) / (pos.Mean - neg.Mean)
		if pp < 0 || pp > 1 {
			continue
		}
		weights := make([]float64, len(pos.Weights))
		ops.Blend(weights, pos.Weights, neg.Weights, pp)
		return &Row{
			Weights: weights,
			Mean:    calc.WeightedMean(p.cfg.Support, weights),
			Median:  calc.WeightedMedian(p.cfg.Support, weights),
		}
	}
	return nil
}

func medianFilter(p *rowPlan, row *Row) bool {
	median := row.Median
	if row.Median <= 0 {
		if row.Mean <= 0 {
			return (1 <= p.skew[1]) && (1 >= p.skew[0])
		}
		median = 1e-6
	}
	ratio := row.Mean / median
	if ratio > p.skew[0] && ratio < p.skew[1] {
		p.fail = 0
		return true
	}
	p.fail++
	if p.fail >= mercy {
		p.skew[0] -= 0.2
		p.skew[1] += 0.2
	}
	return false
}

// stdFilter 選用的第二道品質窗：support 的加權標準差要落在目標附近。
// 視窗隨嘗試次數放寬，和 medianFilter 的 mercy 同精神。
func (p *rowPlan) stdFilter(row *Row, round int) bool {
	if p.cfg.TargetStd <= 0 {
		return true
	}
	stdscale := 0.1 * float64(1+round/100)
	_, std := stat.PopMeanStdDev(p.cfg.Support, row.Weights)
	return (std > (1-stdscale)*p.cfg.TargetStd) && (std < (1+stdscale)*p.cfg.TargetStd)
}
