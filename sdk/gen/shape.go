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
	"math"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/calc"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/ops"
	"gonum.org/v1/gonum/stat/distuv"
)

// --------------------------------------

type GaussianShape struct {
	Amp float64
	Mu  float64
	Std float64
}

type GaussianMixtureRowGenerator struct {
	rs *RowSetting

	KMin int
	KMax int

	// mu sampling controls
	MuCenter float64 // use TargetMean
	MuStd    float64 // how wide the mus spread around MuCenter

	// std range
	StdMin float64
	StdMax float64

	// amp range (positive)
	AmpMin float64
	AmpMax float64

	// zero range
	ZeroMin float64
	ZeroMax float64

	SpikeOn        bool
	SpikeMassRange [2]float64
	SpikeWinRange  [2]float64

	Biases   []Bias
	biasPick []float64 // 各 bias 的 prob + 主中心的 mainWeight，calc.DrawRow 用

	// Set
	isSet    bool
	zeros    int       // 有幾個0
	support  []float64 // 類別數值
	failed   int
	spikeidx []int
}

func NewGaussianMixtureRowGenerator(rs *RowSetting) (RowGenerator, error) {
	cfg := rs.ShapeCfg.Gaussian
	if cfg == nil {
		return nil, errs.NewWarn("shape cfg gaussian is required")
	}
	if cfg.MuCenter < rs.minSupport() {
		return nil, errs.Warnf("row %s shape cfg err: mu_center must be at least min support", rs.RowName)
	}
	if cfg.MuCenter > rs.maxSupport() {
		return nil, errs.Warnf("row %s shape cfg err: mu_center must be less than max support", rs.RowName)
	}
	if cfg.KRange[1] < cfg.KRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: k_range[0] must be less than k_range[1]", rs.RowName)
	}
	if cfg.KRange[0] < 1 {
		return nil, errs.Warnf("row %s shape cfg err: k_range[0] must be at least 1", rs.RowName)
	}
	if cfg.StdRange[1] < cfg.StdRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: std_range[0] must be less than std_range[1]", rs.RowName)
	}
	if cfg.AmpRange[1] < cfg.AmpRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: amp_range[0] must be less than amp_range[1]", rs.RowName)
	}
	if cfg.ZeroRange[1] < cfg.ZeroRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[0] must be less than zero_range[1]", rs.RowName)
	}
	if cfg.ZeroRange[0] < 0.0 {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[0] must be non-negative", rs.RowName)
	}
	if cfg.ZeroRange[1] > 1.0 {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[1] must less than 1.0", rs.RowName)
	}
	gm := &GaussianMixtureRowGenerator{
		rs:       rs,
		KMin:     cfg.KRange[0],
		KMax:     cfg.KRange[1],
		MuCenter: cfg.MuCenter,
		MuStd:    cfg.MuStd,
		StdMin:   cfg.StdRange[0],
		StdMax:   cfg.StdRange[1],
		AmpMin:   cfg.AmpRange[0],
		AmpMax:   cfg.AmpRange[1],
		ZeroMin:  cfg.ZeroRange[0],
		ZeroMax:  cfg.ZeroRange[1],
		isSet:    false,
	}
	if cfg.Spike != nil {
		if cfg.Spike.MassRange[0] > cfg.Spike.MassRange[1] {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be less than mass[1]", rs.RowName)
		}
		if cfg.Spike.MassRange[0] < 0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be non-negative", rs.RowName)
		}
		if cfg.Spike.MassRange[1] > 1.0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be less than 1.0", rs.RowName)
		}
		if cfg.Spike.MassRange[1]+gm.ZeroMax > 1.0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[1] + zero_max must be less than 1.0", rs.RowName)
		}
		if cfg.Spike.WinRange[0] > cfg.Spike.WinRange[1] {
			return nil, errs.Warnf("row %s shape cfg spike err: win[0] must be less than win[1]", rs.RowName)
		}
		gm.SpikeOn = true
		gm.SpikeMassRange = cfg.Spike.MassRange
		gm.SpikeWinRange = cfg.Spike.WinRange
	}
	biases, pick, err := buildBiasPick(rs, cfg.Biases)
	if err != nil {
		return nil, err
	}
	gm.Biases = biases
	gm.biasPick = pick

	return gm, nil
}

func (g *GaussianMixtureRowGenerator) Set(support []float64) bool {
	// NOTE: support 已在 RowSetting.validate 驗證過 ascending，這裡不再 assert。
	if g.isSet {
		return false
	}
	if len(support) == 0 {
		return false
	}
	zeros := 0
	for _, w := range support {
		if w > 0.0 {
			break
		}
		zeros++
	}
	if g.SpikeOn {
		index := make([]int, 0, 10)
		smin := g.SpikeWinRange[0]
		smax := g.SpikeWinRange[1]
		for i := len(support) - 1; i >= zeros; i-- {
			w := support[i]
			if (w <= smax) && (w >= smin) {
				index = append(index, i)
			}
		}
		if len(index) == 0 {
			g.SpikeOn = false
		}
		g.spikeidx = index
	}
	if zeros == 0 {
		g.ZeroMin = 0.0
		g.ZeroMax = 0.0
	}
	g.zeros = zeros
	g.support = support
	g.isSet = true
	return true
}

func (g *GaussianMixtureRowGenerator) Gen(c *core.Core) (*Row, error) {
	if !g.isSet {
		return nil, errs.Warnf("set support required")
	}

	// 1. 0分率(選用):從範圍取得本次0分率
	zeroRate := 0.0
	weights := make([]float64, len(g.support))
	if g.ZeroMax > 0.0 && (g.zeros > 0) {
		diffrange := g.ZeroMax - g.ZeroMin
		zeroRate = g.ZeroMin + c.Float64()*diffrange
		// 均攤到每個零值類別
		ops.Fill(weights[:g.zeros], zeroRate/float64(g.zeros))
	}

	// 2. Spike(選用): add a small, human-made peak near the tail (spike)
	spikeProb := 0.0
	spikeIdx := 0
	if g.SpikeOn && (len(g.spikeidx) > 0) {
		diff := g.SpikeMassRange[1] - g.SpikeMassRange[0]
		spikeProb = g.SpikeMassRange[0] + c.Float64()*diff
		spikeIdx = c.Pick(g.spikeidx) // 從列表中隨機挑一個
	}
	remain := 1.0 - zeroRate - spikeProb
	if remain > epsilon {
		if g.zeros >= len(g.support) {
			return nil, errs.Warnf(
				"row=%s method=%s invalid_support: remain=%.12g (>eps=%.12g) but support has no non-zero bins (zeros=%d support_len=%d, range=[%.6g,%.6g]). "+
					"Meaning: config requires mixture mass, but there is nowhere to place it. "+
					"Fix: reduce zero_range/spike_mass so remain<=eps, or provide non-zero support values.",
				g.rs.RowName, "gaussian", remain, epsilon,
				g.zeros, len(g.support),
				g.support[0], g.support[len(g.support)-1],
			)
		}
		// 3. 從範圍取得本次要混合的GaussianShape數量
		k := g.KMin
		if g.KMax > g.KMin {
			k = g.KMin + c.IntN(g.KMax-g.KMin+1)
		}

		gauss := make([]GaussianShape, 0, k)
		for i := 0; i < k; i++ {
			// --- Mu: centered around MuCenter (natural) ---
			center := g.MuCenter
			if pick := calc.DrawRow(g.biasPick, c.Float64()) - 1; pick < len(g.Biases) {
				start := g.Biases[pick].Range[0]
				maxrange := g.Biases[pick].Range[1] - start
				center = start + c.Float64()*maxrange
			}
			// mu = center + N(0,1)*MuStd
			mu := center + c.NormFloat64()*g.MuStd

			// optional: clamp mu into support range to avoid useless gauss
			mu = max(mu, g.rs.minSupport())
			mu = min(mu, g.rs.maxSupport())

			// --- Std: uniform in [StdMin, StdMax] ---
			std := g.StdMin + c.Float64()*(g.StdMax-g.StdMin)
			if std <= 1e-9 {
				std = 1e-9
			}

			// --- Amp: uniform in [AmpMin, AmpMax] ---
			amp := g.AmpMin + c.Float64()*(g.AmpMax-g.AmpMin)
			if amp <= 0 {
				amp = 1e-9
			}

			gauss = append(gauss, GaussianShape{Amp: amp, Mu: mu, Std: std})
		}

		var sumW float64
		for i := g.zeros; i < len(g.support); i++ {
			x := g.support[i]
			var w float64
			for _, b := range gauss {
				w += b.Amp * normalPDF(x, b.Mu, b.Std)
			}
			weights[i] = w
			sumW += w
		}

		// fallback: if all weights ~0, try again
		if !(sumW > 0) || math.IsNaN(sumW) || math.IsInf(sumW, 0) {
			g.failed++
			if g.failed > 500 {
				return nil, errs.Warnf(
					"row=%s method=gaussian gen_failed(retry_limit) failed=%d/%d support_len=%d zeros=%d range=[%.6g,%.6g] zero_range=[%.6g,%.6g] zero_rate=%.6g spike_on=%t spike_range=[%.6g,%.6g] spike_prob=%.6g k_range=[%d,%d] mu_center=%.6g mu_std=%.6g std_range=[%.6g,%.6g] amp_range=[%.6g,%.6g] biases=%d",
					g.rs.RowName, g.failed, 500,
					len(g.support), g.zeros,
					g.support[0], g.support[len(g.support)-1],
					g.ZeroMin, g.ZeroMax, zeroRate,
					g.SpikeOn, g.SpikeMassRange[0], g.SpikeMassRange[1], spikeProb,
					g.KMin, g.KMax,
					g.MuCenter, g.MuStd,
					g.StdMin, g.StdMax,
					g.AmpMin, g.AmpMax,
					len(g.Biases),
				)
			}
			return g.Gen(c)
		}

		// normalize to probability distribution
		ops.Scale(weights[g.zeros:], remain/sumW)
	}

	// 這時後spike 把 spikeProb 加上去
	if g.SpikeOn && (spikeProb > 0.0) {
		weights[spikeIdx] += spikeProb
	}

	g.failed = 0
	return &Row{
		Weights: weights,
		Mean:    calc.WeightedMean(g.support, weights),
		Median:  calc.WeightedMedian(g.support, weights),
	}, nil
}

func normalPDF(x, mu, std float64) float64 {
	// 1/(std*sqrt(2*pi)) * exp(-0.5*((x-mu)/std)^2)
	z := (x - mu) / std
	return (1.0 / (std * math.Sqrt(2*math.Pi))) * math.Exp(-0.5*z*z)
}

// buildBiasPick 驗證 bias 設定並建好 calc.DrawRow 用的權重列：
// 前段是各 bias 的 prob，最後一格是主中心剩下的 mainWeight。
func buildBiasPick(rs *RowSetting, cfgBiases []Bias) ([]Bias, []float64, error) {
	mainWeight := baseWeight
	pick := make([]float64, 0, len(cfgBiases)+1)
	biases := make([]Bias, 0, len(cfgBiases))
	for _, b := range cfgBiases {
		if b.Prob > mainWeight {
			return nil, nil, errs.Warnf("row %s shape cfg err: biases prob over %d", rs.RowName, baseWeight)
		}
		if b.Range[0] > b.Range[1] {
			return nil, nil, errs.Warnf("row %s shape cfg err: biases range[1] must be grater than range[0]", rs.RowName)
		}
		if b.Range[0] < rs.minSupport() {
			return nil, nil, errs.Warnf("row %s shape cfg err: biases range[0] must be at least min support", rs.RowName)
		}
		if b.Range[1] > rs.maxSupport() {
			return nil, nil, errs.Warnf("row %s shape cfg err: biases range[1] must be less than max support", rs.RowName)
		}
		mainWeight -= b.Prob
		if b.Prob > 0 {
			pick = append(pick, float64(b.Prob))
			biases = append(biases, b)
		}
	}
	pick = append(pick, float64(mainWeight))
	return biases, pick, nil
}

// ---------------------------------

type GammaShape struct {
	Amp float64
	Mu  float64
	Std float64
}

type GammaMixtureRowGenerator struct {
	rs *RowSetting

	KMin int
	KMax int

	// mu sampling controls
	MuCenter float64 // use TargetMean
	MuStd    float64 // how wide the mus spread around MuCenter

	// std range
	StdMin float64
	StdMax float64

	// amp range (positive)
	AmpMin float64
	AmpMax float64

	// zero range
	ZeroMin float64
	ZeroMax float64

	SpikeOn        bool
	SpikeMassRange [2]float64
	SpikeWinRange  [2]float64

	Biases   []Bias
	biasPick []float64

	// Set
	isSet    bool
	zeros    int       // 有幾個0
	support  []float64 // 類別數值
	failed   int
	spikeidx []int
}

func NewGammaMixtureRowGenerator(rs *RowSetting) (RowGenerator, error) {
	cfg := rs.ShapeCfg.Gamma
	if cfg == nil {
		return nil, errs.NewWarn("shape cfg gamma is required")
	}
	if cfg.MuCenter < rs.minSupport() {
		return nil, errs.Warnf("row %s shape cfg err: mu_center must be at least min support", rs.RowName)
	}
	if cfg.MuCenter > rs.maxSupport() {
		return nil, errs.Warnf("row %s shape cfg err: mu_center must be less than max support", rs.RowName)
	}
	if cfg.KRange[1] < cfg.KRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: k_range[0] must be less than k_range[1]", rs.RowName)
	}
	if cfg.KRange[0] < 1 {
		return nil, errs.Warnf("row %s shape cfg err: k_range[0] must be at least 1", rs.RowName)
	}
	if cfg.StdRange[1] < cfg.StdRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: std_range[0] must be less than std_range[1]", rs.RowName)
	}
	if cfg.AmpRange[1] < cfg.AmpRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: amp_range[0] must be less than amp_range[1]", rs.RowName)
	}
	if cfg.ZeroRange[1] < cfg.ZeroRange[0] {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[0] must be less than zero_range[1]", rs.RowName)
	}
	if cfg.ZeroRange[0] < 0.0 {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[0] must be non-negative", rs.RowName)
	}
	if cfg.ZeroRange[1] > 1.0 {
		return nil, errs.Warnf("row %s shape cfg err: zero_range[1] must less than 1.0", rs.RowName)
	}
	gm := &GammaMixtureRowGenerator{
		rs:       rs,
		KMin:     cfg.KRange[0],
		KMax:     cfg.KRange[1],
		MuCenter: cfg.MuCenter,
		MuStd:    cfg.MuStd,
		StdMin:   cfg.StdRange[0],
		StdMax:   cfg.StdRange[1],
		AmpMin:   cfg.AmpRange[0],
		AmpMax:   cfg.AmpRange[1],
		ZeroMin:  cfg.ZeroRange[0],
		ZeroMax:  cfg.ZeroRange[1],
		isSet:    false,
	}
	if cfg.Spike != nil {
		if cfg.Spike.MassRange[0] > cfg.Spike.MassRange[1] {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be less than mass[1]", rs.RowName)
		}
		if cfg.Spike.MassRange[0] < 0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be non-negative", rs.RowName)
		}
		if cfg.Spike.MassRange[1] > 1.0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[0] must be less than 1.0", rs.RowName)
		}
		if cfg.Spike.MassRange[1]+gm.ZeroMax > 1.0 {
			return nil, errs.Warnf("row %s shape cfg spike err: mass[1] + zero_max must be less than 1.0", rs.RowName)
		}
		if cfg.Spike.WinRange[0] > cfg.Spike.WinRange[1] {
			return nil, errs.Warnf("row %s shape cfg spike err: win[0] must be less than win[1]", rs.RowName)
		}
		gm.SpikeOn = true
		gm.SpikeMassRange = cfg.Spike.MassRange
		gm.SpikeWinRange = cfg.Spike.WinRange
	}
	biases, pick, err := buildBiasPick(rs, cfg.Biases)
	if err != nil {
		return nil, err
	}
	gm.Biases = biases
	gm.biasPick = pick

	return gm, nil
}

func (g *GammaMixtureRowGenerator) Set(support []float64) bool {
	// NOTE: support 已在 RowSetting.validate 驗證過 ascending，這裡不再 assert。
	if g.isSet {
		return false
	}
	if len(support) == 0 {
		return false
	}
	zeros := 0
	for _, w := range support {
		if w > 0.0 {
			break
		}
		zeros++
	}
	if g.SpikeOn {
		index := make([]int, 0, 10)
		smin := g.SpikeWinRange[0]
		smax := g.SpikeWinRange[1]
		for i := len(support) - 1; i >= zeros; i-- {
			w := support[i]
			if (w <= smax) && (w >= smin) {
				index = append(index, i)
			}
		}
		if len(index) == 0 {
			g.SpikeOn = false
		}
		g.spikeidx = index
	}
	if zeros == 0 {
		g.ZeroMin = 0.0
		g.ZeroMax = 0.0
	}
	g.zeros = zeros
	g.support = support
	g.isSet = true
	return true
}

func (g *GammaMixtureRowGenerator) Gen(c *core.Core) (*Row, error) {
	if !g.isSet {
		return nil, errs.Warnf("set support required")
	}

	// 1. 0分率(選用):從範圍取得本次0分率
	zeroRate := 0.0
	weights := make([]float64, len(g.support))
	if g.ZeroMax > 0.0 && (g.zeros > 0) {
		diffrange := g.ZeroMax - g.ZeroMin
		zeroRate = g.ZeroMin + c.Float64()*diffrange
		// 均攤到每個零值類別
		ops.Fill(weights[:g.zeros], zeroRate/float64(g.zeros))
	}

	// 2. Spike(選用): add a small, human-made peak near the tail (spike)
	spikeProb := 0.0
	spikeIdx := 0
	if g.SpikeOn && (len(g.spikeidx) > 0) {
		diff := g.SpikeMassRange[1] - g.SpikeMassRange[0]
		spikeProb = g.SpikeMassRange[0] + c.Float64()*diff
		spikeIdx = c.Pick(g.spikeidx) // 從列表中隨機挑一個
	}
	remain := 1.0 - zeroRate - spikeProb
	if remain > epsilon {
		if g.zeros >= len(g.support) {
			return nil, errs.Warnf(
				"row=%s method=%s invalid_support: remain=%.12g (>eps=%.12g) but support has no non-zero bins (zeros=%d support_len=%d, range=[%.6g,%.6g]). "+
					"Meaning: config requires mixture mass, but there is nowhere to place it. "+
					"Fix: reduce zero_range/spike_mass so remain<=eps, or provide non-zero support values.",
				g.rs.RowName, "gamma", remain, epsilon,
				g.zeros, len(g.support),
				g.support[0], g.support[len(g.support)-1],
			)
		}
		// 3. 從範圍取得本次要混合的GammaShape數量
		k := g.KMin
		if g.KMax > g.KMin {
			k = g.KMin + c.IntN(g.KMax-g.KMin+1)
		}

		shape := make([]GammaShape, 0, k)
		for i := 0; i < k; i++ {
			// --- Mu: centered around MuCenter (natural) ---
			center := g.MuCenter
			if pick := calc.DrawRow(g.biasPick, c.Float64()) - 1; pick < len(g.Biases) {
				start := g.Biases[pick].Range[0]
				maxrange := g.Biases[pick].Range[1] - start
				center = start + c.Float64()*maxrange
			}
			// mu = center + N(0,1)*MuStd
			mu := center + c.NormFloat64()*g.MuStd

			// optional: clamp mu into support range to avoid useless shape
			mu = max(mu, g.rs.minSupport())
			mu = min(mu, g.rs.maxSupport())
			if mu <= 0 {
				mu = 1e-6 // guard
			}

			// --- Std: uniform in [StdMin, StdMax] ---
			std := g.StdMin + c.Float64()*(g.StdMax-g.StdMin)
			if std <= 1e-9 {
				std = 1e-9
			}

			// --- Amp: uniform in [AmpMin, AmpMax] ---
			amp := g.AmpMin + c.Float64()*(g.AmpMax-g.AmpMin)
			if amp <= 0 {
				amp = 1e-9
			}

			shape = append(shape, GammaShape{Amp: amp, Mu: mu, Std: std})
		}

		gma := distuv.Gamma{Src: c} // use core
		var sumW float64
		for i, x := range g.support[g.zeros:] {
			var w float64
			for _, b := range shape {
				alpha := (b.Mu / b.Std) * (b.Mu / b.Std) // alpha = (mu/std)^2
				// guard alpha must be over 1.2
				alpha = max(1.2, alpha)
				beta := alpha / b.Mu // keep mean
				gma.Alpha = alpha
				gma.Beta = beta
				w += b.Amp * gma.Prob(x) // PDF
			}
			weights[g.zeros+i] = w
			sumW += w
		}

		// fallback: if all weights ~0, try again
		if !(sumW > 0) || math.IsNaN(sumW) || math.IsInf(sumW, 0) {
			g.failed++
			if g.failed > 500 {
				return nil, errs.Warnf(
					"row=%s method=gamma gen_failed(retry_limit) failed=%d/%d support_len=%d zeros=%d range=[%.6g,%.6g] zero_range=[%.6g,%.6g] zero_rate=%.6g spike_on=%t spike_range=[%.6g,%.6g] spike_prob=%.6g k_range=[%d,%d] mu_center=%.6g mu_std=%.6g std_range=[%.6g,%.6g] amp_range=[%.6g,%.6g] biases=%d",
					g.rs.RowName, g.failed, 500,
					len(g.support), g.zeros,
					g.support[0], g.support[len(g.support)-1],
					g.ZeroMin, g.ZeroMax, zeroRate,
					g.SpikeOn, g.SpikeMassRange[0], g.SpikeMassRange[1], spikeProb,
					g.KMin, g.KMax,
					g.MuCenter, g.MuStd,
					g.StdMin, g.StdMax,
					g.AmpMin, g.AmpMax,
					len(g.Biases),
				)
			}
			return g.Gen(c)
		}

		// normalize to probability distribution
		ops.Scale(weights[g.zeros:], remain/sumW)
	}

	// 這時後spike 把 spikeProb 加上去
	if g.SpikeOn && (spikeProb > 0.0) {
		weights[spikeIdx] += spikeProb
	}

	g.failed = 0 // 失敗次數歸零
	return &Row{
		Weights: weights,
		Mean:    calc.WeightedMean(g.support, weights),
		Median:  calc.WeightedMedian(g.support, weights),
	}, nil
}

// -----------------------------------

func NewUniformRowGenerator(rs *RowSetting) (RowGenerator, error) {
	return &UniformRowGenerator{}, nil
}

type UniformRowGenerator struct {
	isSet   bool
	support []float64
}

func (u *UniformRowGenerator) Set(support []float64) bool {
	if u.isSet {
		return false
	}
	if len(support) == 0 {
		return false
	}
	u.support = support
	u.isSet = true
	return true
}

func (u *UniformRowGenerator) Gen(c *core.Core) (*Row, error) {
	if !u.isSet {
		return nil, errs.Warnf("set support required")
	}

	weights := make([]float64, len(u.support))
	ops.Fill(weights, 1.0/float64(len(u.support)))
	return &Row{
		Weights: weights,
		Mean:    calc.WeightedMean(u.support, weights),
		Median:  calc.WeightedMedian(u.support, weights),
	}, nil
}
