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
	"crypto/rand"
	"io"
	"io/fs"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/recorder"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

const capPrepare int = 100

// Verifier 用於驗證引擎的統計行為，可建立多座裝置並平行紀錄統計。
type Verifier struct {
	EngineName string                     // 引擎名稱
	EngineId   spec.EID                   // 引擎名稱enum
	es         *spec.EngineSetting        // 方便重用建立 recorder/report
	pf         core.PRNGFactory           // 亂數工廠策略（nil = 依設定選擇）
	bankFS     fs.FS                      // 矩陣庫來源（依設定決定是否使用）
	initSeed   int64                      // 初始下的種子
	seedmaker  *seedMaker                 // 種子生成器
	dBuf       []*Device                  // 併發執行裝置實例
	rBuf       []*recorder.SampleRecorder // 併發抽樣紀錄員
}

func newVerifier(es *spec.EngineSetting, pf core.PRNGFactory, bankFS fs.FS) (*Verifier, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return newVerifierWithSeed(es, pf, bankFS, seed.Int64())
}

func newVerifierWithSeed(es *spec.EngineSetting, pf core.PRNGFactory, bankFS fs.FS, seed int64) (*Verifier, error) {
	s := &Verifier{
		EngineName: es.EngineName,
		EngineId:   es.EngineID,
		es:         es,
		pf:         pf,
		bankFS:     bankFS,
		initSeed:   seed,
		seedmaker:  newSeedMaker(seed),
		dBuf:       make([]*Device, 1, capPrepare),
		rBuf:       make([]*recorder.SampleRecorder, 0, capPrepare),
	}
	d, err := newDeviceWithSeed(es, pf, bankFS, s.initSeed)
	if err != nil {
		return nil, err
	}
	s.dBuf[0] = d
	return s, nil
}

// prep 把驗證請求寫進裝置的可重用 buffer，並用裝置自己的檢核把關。
// samples == 0 會套用設定檔的 default_samples（和對外 Sample 行為一致）。
func (s *Verifier) prep(d *Device, weights []float64, rows, cols, samples int, replacement bool) error {
	d.SampleRequest.Reset()
	w := d.SampleRequest.SetShape(rows, cols)
	copy(w, weights)
	if samples == 0 {
		samples = s.es.DefaultSamples
	}
	d.SampleRequest.Samples = samples
	d.SampleRequest.Replacement = replacement
	return d.validSample(d.SampleRequest)
}

// Verify 單線驗證器：以一座裝置連續跑指定 round 並回傳統計報表與用時
func (s *Verifier) Verify(weights []float64, rows, cols, samples int, replacement bool, rounds int, showpb bool) (*stats.VerifyReport, time.Duration, error) {
	defer s.reset()
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if len(weights) != rows*cols {
		return nil, 0, errs.NewWarn("weights length err: must match rows*cols")
	}
	if len(s.rBuf) == 0 {
		r, err := recorder.NewSampleRecorder(s.EngineName, s.EngineId, weights, rows, cols, s.es.VerifySetting.Alpha)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	r := s.rBuf[0]
	d := s.dBuf[0]
	if err := s.prep(d, weights, rows, cols, samples, replacement); err != nil {
		return nil, 0, err
	}

	bar := pb.StartNew(rounds)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < rounds; i++ {
		sr := d.SampleInternal()
		r.Record(sr)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()
	result.Done()

	return result, used, nil
}

// VerifyMP 平行執行多座裝置，總計 rounds*mp 次取樣，合併統計後回傳統計報表與用時
func (s *Verifier) VerifyMP(weights []float64, rows, cols, samples int, replacement bool, rounds int, mp int, showpb bool) (*stats.VerifyReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if len(weights) != rows*cols {
		return nil, 0, errs.NewWarn("weights length err: must match rows*cols")
	}
	for len(s.dBuf) < mp {
		d, err := newDeviceWithSeed(s.es, s.pf, s.bankFS, s.seedmaker.next())
		if err != nil {
			return nil, 0, err
		}
		s.dBuf = append(s.dBuf, d)
	}

	for len(s.rBuf) < mp {
		r, err := recorder.NewSampleRecorder(s.EngineName, s.EngineId, weights, rows, cols, s.es.VerifySetting.Alpha)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	for i := 0; i < mp; i++ {
		if err := s.prep(s.dBuf[i], weights, rows, cols, samples, replacement); err != nil {
			return nil, 0, err
		}
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			g := s.dBuf[i]
			st := s.rBuf[i]
			for r := 0; r < rounds; r++ {
				sr := g.SampleInternal()
				st.Record(sr)
				bar.Increment()
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	st, err := recorder.MergeSampleRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()
	result.Done()

	return result, used, nil
}

// VerifyFit 平行驗證後，對合併報表再跑一次逐列適合度分析（頻率容差 + 卡方 + 信賴區間）。
func (s *Verifier) VerifyFit(weights []float64, rows, cols, samples int, replacement bool, rounds int, mp int, showpb bool) (*stats.VerifyReport, *stats.EstimatorRows, time.Duration, error) {
	rep, used, err := s.VerifyMP(weights, rows, cols, samples, replacement, rounds, mp, showpb)
	if err != nil {
		return nil, nil, 0, err
	}
	est := stats.EstimatorRowFit(rep)
	return rep, est, used, nil
}

// VerifyLogNormal 平行驗證對數常態填充：每座裝置各填 count 筆（總計 count*mp），
// 再以動差法對合併樣本做參數回推與檢定。
func (s *Verifier) VerifyLogNormal(count int, mean, stddev float64, mp int, showpb bool) (*stats.LogFitReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	for len(s.dBuf) < mp {
		d, err := newDeviceWithSeed(s.es, s.pf, s.bankFS, s.seedmaker.next())
		if err != nil {
			return nil, 0, err
		}
		s.dBuf = append(s.dBuf, d)
	}
	if err := s.dBuf[0].validFill(count, mean, stddev); err != nil {
		return nil, 0, err
	}

	vals := make([][]float64, mp)
	for i := range vals {
		vals[i] = make([]float64, count)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			s.dBuf[i].FillInternal(mean, stddev, vals[i])
			bar.Increment()
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	values := make([]float64, 0, count*mp)
	for _, v := range vals {
		values = append(values, v...)
	}
	result := stats.FitLogNormal(values, mean, stddev, s.es.VerifySetting.Alpha)

	return result, used, nil
}

func (s *Verifier) reset() {
	s.rBuf = s.rBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 注意：此方法可能在併發環境下被多 goroutines 同時呼叫（例如 VerifyMP / VerifyLogNormal）。
// 因此 state 的推進必須是原子的：
//   - 使用 CAS（Compare-And-Swap）迴圈確保每次呼叫都會取得唯一的下一個 state。
//   - 回傳值使用推進後的 state 經 mix63 打散後的結果。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
