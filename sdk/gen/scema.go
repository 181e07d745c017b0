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
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/spec"
	"gopkg.in/yaml.v3"
)

// MatrixSetting 一張權重矩陣的完整設計圖
//
// 矩陣的每一列由一個 RowSetting 生成；同一個 RowSetting 可以用
// repeat 生成多列（同配方、不同亂數）。所有 RowSetting 的 support
// 長度必須一致，該長度即為矩陣的 cols。
type MatrixSetting struct {
	MatrixName string        `yaml:"matrix_name"`
	Rows       []*RowSetting `yaml:"row_settings"`
}

// RowSetting 一列權重的生成配方
type RowSetting struct {
	// 識別
	RowName string `yaml:"row_name"`

	// 類別數值，由小到大排序，允許前段為 0（零質量類別）。
	// 索引 i 對應 1-based 類別 i+1。
	Support []float64 `yaml:"support"`

	// 本列的目標期望值（以 support 計）。允許小數。
	TargetMean float64 `yaml:"target_mean"`

	// 選用：目標標準差（以 support 計）。0 代表不檢查。
	TargetStd float64 `yaml:"target_std"`

	// 正/負樣本池各自要收集的數量
	Basis uint `yaml:"basis"`

	// 用本配方生成幾列，預設 1
	Repeat int `yaml:"repeat"`

	// 型態設定
	ShapeCfg *ShapeCfg `yaml:"shape_cfg"`

	// 品質評估
	QualityEval *QualityEvaluate `yaml:"quality_evaluate"`
}

type ShapeCfg struct {
	Method   string    `yaml:"method"`
	Gaussian *Gaussian `yaml:"gaussian"`
	Gamma    *Gamma    `yaml:"gamma"`
}

type Gaussian struct {
	KRange [2]int `yaml:"k_range"`

	MuCenter float64 `yaml:"mu_center"`
	MuStd    float64 `yaml:"mu_std"`

	StdRange  [2]float64 `yaml:"std_range"`
	AmpRange  [2]float64 `yaml:"amp_range"`
	ZeroRange [2]float64 `yaml:"zero_range"`
	// 可選：人為製造一個小峰值（極端值附近的微量質量），用於提升尾部體驗。
	// 若未設定或 mass_range 都是 0，則不啟用。
	// SpikeCfg 用於在分布上加入一個「微量峰值」（point-mass peak）。
	// 這裡刻意不暴露 style 選項，以保持設定乾淨：
	// 啟用後，系統會在 support 的「指定區間」隨機選一個點加上 mass。
	//
	// MassRange 建議很小，例如 [0.0001, 0.0003] (0.01%~0.03%)。
	Spike *SpikeCfg `yaml:"spike"`

	Biases []Bias `yaml:"biases"`
}

type Bias struct {
	Range [2]float64 `yaml:"range"`
	Prob  int        `yaml:"prob"` // 基底100萬
}

type SpikeCfg struct {
	MassRange [2]float64 `yaml:"mass_range"`
	WinRange  [2]float64 `yaml:"win_range"`
}

type Gamma struct {
	KRange [2]int `yaml:"k_range"`

	MuCenter float64 `yaml:"mu_center"`
	MuStd    float64 `yaml:"mu_std"`

	StdRange  [2]float64 `yaml:"std_range"`
	AmpRange  [2]float64 `yaml:"amp_range"`
	ZeroRange [2]float64 `yaml:"zero_range"`
	// 可選：同 Gaussian 的 Spike，在 support 指定區間加一個微量峰值。
	Spike *SpikeCfg `yaml:"spike"`

	Biases []Bias `yaml:"biases"`
}

type QualityEvaluate struct {
	MeanMedianRatio [2]float64 `yaml:"mean_median_ratio"`
}

func getMatrixSettingByYaml(data []byte) (*MatrixSetting, error) {
	ms := &MatrixSetting{}
	if err := yaml.Unmarshal(data, ms); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}
	if err := ms.validate(); err != nil {
		return nil, err
	}
	return ms, nil
}

// FromEngineSetting 從 EngineSetting 的 fixed 區塊解出 MatrixSetting。
// 引擎設定檔可以直接內嵌矩陣設計圖，讓 bank 生成與引擎共用同一份 YAML。
func FromEngineSetting(es *spec.EngineSetting) (*MatrixSetting, error) {
	ms := &MatrixSetting{}
	if err := spec.DecodeFixed(es, ms); err != nil {
		return nil, err
	}
	if err := ms.validate(); err != nil {
		return nil, err
	}
	return ms, nil
}

func (ms *MatrixSetting) validate() error {
	if ms.MatrixName == "" {
		return errs.NewWarn("matrix setting: matrix_name is required")
	}
	if len(ms.Rows) == 0 {
		return errs.NewWarn("matrix setting: row_settings is required")
	}
	cols := len(ms.Rows[0].Support)
	for _, rs := range ms.Rows {
		if err := rs.validate(); err != nil {
			return errs.Warnf("matrix %s: %s", ms.MatrixName, err.Error())
		}
		if len(rs.Support) != cols {
			return errs.Warnf("matrix %s: row %s support length %d != %d, all rows must agree",
				ms.MatrixName, rs.RowName, len(rs.Support), cols)
		}
	}
	return nil
}

// validate 檢查 RowSetting 是否合理。
// support 的排序在這裡驗證一次，之後的生成熱路徑不再 assert。
func (rs *RowSetting) validate() error {
	if rs.RowName == "" {
		return errs.NewWarn("row: row_name is required")
	}
	if len(rs.Support) < 1 {
		return errs.Warnf("row %s: support is required", rs.RowName)
	}
	for i := 1; i < len(rs.Support); i++ {
		if rs.Support[i] < rs.Support[i-1] {
			return errs.Warnf("row %s: support must be ascending (support[%d] < support[%d])", rs.RowName, i, i-1)
		}
	}
	if rs.Support[0] < 0 {
		return errs.Warnf("row %s: support must be non-negative", rs.RowName)
	}
	if rs.TargetMean < rs.Support[0] {
		return errs.Warnf("row %s: target_mean must be >= min support", rs.RowName)
	}
	if rs.TargetMean > rs.Support[len(rs.Support)-1] {
		return errs.Warnf("row %s: target_mean must be <= max support", rs.RowName)
	}
	if rs.TargetStd < 0 {
		return errs.Warnf("row %s: target_std must be non-negative", rs.RowName)
	}
	if rs.Basis <= 0 {
		return errs.Warnf("row %s: basis must be at least 1", rs.RowName)
	}
	if rs.Repeat < 0 {
		return errs.Warnf("row %s: repeat must be non-negative", rs.RowName)
	}
	if rs.Repeat == 0 {
		rs.Repeat = 1
	}
	// --- ShapeCfg validation ---
	if rs.ShapeCfg == nil {
		return errs.Warnf("row %s: shape_cfg is required", rs.RowName)
	}
	if rs.ShapeCfg.Method == "" {
		return errs.Warnf("row %s: shape_cfg.method is required", rs.RowName)
	}
	switch rs.ShapeCfg.Method {
	case "gaussian":
		if rs.ShapeCfg.Gaussian == nil {
			return errs.Warnf("row %s: shape_cfg.gaussian is required for method gaussian", rs.RowName)
		}
	case "gamma":
		if rs.ShapeCfg.Gamma == nil {
			return errs.Warnf("row %s: shape_cfg.gamma is required for method gamma", rs.RowName)
		}
	case "uniform":
		// no additional requirement
	default:
		return errs.Warnf("row %s: shape_cfg.method %s not supported", rs.RowName, rs.ShapeCfg.Method)
	}
	if rs.QualityEval == nil {
		return errs.Warnf("row %s: quality_evaluate is required", rs.RowName)
	}
	if rs.QualityEval.MeanMedianRatio[1] < rs.QualityEval.MeanMedianRatio[0] {
		return errs.Warnf("row %s: mean_median_ratio[1] must be >= mean_median_ratio[0]", rs.RowName)
	}
	return nil
}

// minSupport / maxSupport 仰賴 validate 過的 ascending support
func (rs *RowSetting) minSupport() float64 { return rs.Support[0] }
func (rs *RowSetting) maxSupport() float64 { return rs.Support[len(rs.Support)-1] }
