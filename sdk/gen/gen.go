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

// Package gen 以混合分佈設計權重矩陣。
//
// 每個 RowSetting 描述一列類別權重的目標形狀：support 給出各類別的
// 數值（由小到大排序，允許前段為 0），target_mean 給出期望值目標。
// 生成流程分兩階段：先用形狀產生器灑出足夠的正/負樣本（Mean 高於與
// 低於目標各一池），再以線性混合精確命中 target_mean，最後過品質
// 評估（mean/median 偏斜窗、選用的 std 窗）。
//
// 產出的 bank.Matrix 每列總和為 1，可直接餵給取樣引擎或寫入 bank。
package gen

import (
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
)

const baseWeight int = 1_000_000
const maxTry int = 100_000
const mercy int = 100
const epsilon float64 = 1e-12

var shapes = map[string]func(*RowSetting) (RowGenerator, error){
	"gaussian": NewGaussianMixtureRowGenerator,
	"gamma":    NewGammaMixtureRowGenerator,
	"uniform":  NewUniformRowGenerator,
}

func GetRowGenerator(method string, rs *RowSetting) (RowGenerator, error) {
	if fn, ok := shapes[method]; ok {
		return fn(rs)
	}
	return nil, errs.Warnf("row %s get row generator err: method %s not found", rs.RowName, method)
}

type RowGenerator interface {
	Set([]float64) bool
	Gen(*core.Core) (*Row, error) // returns w
}

type Row struct {
	Weights []float64 // len == len(support), sum=1
	Mean    float64   // E[support]
	Median  float64   // median
}
