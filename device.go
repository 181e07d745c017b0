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
	"io/fs"
	"math"
	"math/big"
	"sync"

	"github.com/zintix-labs/gridlab/bank"
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/buf"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
)

// Device 封裝一座「可對外提供 Sample」的取樣裝置。
//
// 你可以把 Device 視為取樣管線的「外殼（shell）」：
//   - 對外：提供 Sample / Fill 入口（HTTP/模擬器通常只操作 Device）。
//   - 對內：持有狀態陣列（core.StateArray，每個 block 一個 PRNG 槽位）與
//     精度定案的取樣管線（enginePath）。
//
// 並發語意：
//   - Device 預設不是 lock-free 結構；它內含可重用的 request/result buffer（熱路徑），因此同一座 Device 不應被多 goroutine 同時 Sample。
//   - 若要併發取樣，由更高層建立多座 Device 分散到不同 worker 並管理其生命週期（見 DevicePool）。
//
// Buffer 語意（非常重要，影響 DX 與正確性）：
//   - SampleRequest / SampleResult 會被重用（避免 GC），每次 Sample 會覆寫內容。
//   - 你若需要在 Sample 後保留結果，請在離開臨界區前轉成 DTO（或自行 copy 你需要的欄位）。
//
// initseed 用於記錄出生時的 seed（追溯/重現的基礎資訊）；完整審計仍以
// StateArray 的 Snapshot/Restore 為準。
type Device struct {
	engineName    string             // 引擎名稱（來自 EngineSetting.EngineName，主要用於觀測/日誌）
	engineID      spec.EID           // 引擎 ID（Catalog 內唯一；用於路由與查表）
	es            *spec.EngineSetting
	states        *core.StateArray   // 狀態陣列（熱路徑會頻繁推進）
	path          enginePath         // 精度定案的取樣管線
	banks         *bank.Runtime      // 預載矩陣/快照庫（nil 表示未啟用 bank）
	SampleRequest *buf.SampleRequest // 可重用的請求 buffer（SampleInternal 會覆寫/填充）
	SampleResult  *buf.SampleResult  // 可重用的結果 buffer（熱路徑；每次 Sample 會覆寫）
	mu            sync.Mutex         // 防併發鎖：保護可重用 buffers 與狀態陣列一致性
	initseed      int64              // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

// newDevice 以「隨機 seed」建立 Device。
//
// 這裡使用 crypto/rand 產生 seed 是為了：
//   - 在對外服務情境避免可預測 RNG
//   - 同時保留可追溯性（seed 會被記錄在 Device.initseed）
//
// seed 只保證了新建的 Device 起點，如果需要在任意取樣後將裝置"重設"到任意
// 狀態節點，請利用 Snapshot Restore 來操作
func newDevice(es *spec.EngineSetting, pf core.PRNGFactory, bankFS fs.FS) (*Device, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newDeviceWithSeed(es, pf, bankFS, seed.Int64())
}

// newDeviceWithSeed 以指定 seed 建立 Device。
//
// 這是最常用的「可重現」入口：同一份 EngineSetting + 同一個 seed，
// 必然得到一致的狀態陣列與抽樣序列。
//
// 建立流程（概念）：
//  1. 依 Generator 設定（或外部注入的 pf）建出 PRNGFactory
//  2. core.NewStateArray(pf, blocks, lanes, seed) 派生每個 block 的子 seed
//  3. 依 Precision 實例化取樣管線與可重用 buffers
//  4. 如果啟用 bank（UseBank = true），從 bankFS 預載矩陣與快照庫
func newDeviceWithSeed(es *spec.EngineSetting, pf core.PRNGFactory, bankFS fs.FS, seed int64) (*Device, error) {
	if pf == nil {
		pf = generatorFactory(es.Generator)
	}
	d := &Device{
		engineName: es.EngineName,
		engineID:   es.EngineID,
		es:         es,
		states:     core.NewStateArray(pf, es.Blocks, es.Lanes, seed),
		path:       newEnginePath(es.Precision),
		banks:      nil,
		initseed:   seed,
	}
	d.SampleRequest = &buf.SampleRequest{}
	d.SampleResult = buf.NewSampleResult(es)

	// 如果啟用 bank，預載矩陣與快照庫
	if es.BankSetting.UseBank {
		banks, err := bank.LoadRuntimeFS(bankFS, es)
		if err != nil {
			return nil, err
		}
		d.banks = banks
	}

	return d, nil
}

// generatorFactory 依設定檔的 generator 選擇 PRNG 家族。
func generatorFactory(g spec.Generator) core.PRNGFactory {
	if g == spec.GeneratorPCG32 {
		return core.Compact()
	}
	return core.Default()
}

// Sample 為主要公開入口，會驗證取樣請求，執行取樣並回傳結果。
func (d *Device) Sample(r *dto.SampleRequest) (dto.SampleResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// 1. 校驗請求合法性
	if err := d.valid(r.EngineID, r.EngineName); err != nil {
		return dto.SampleResult{}, err
	}
	// 2. parse dto to inner sample request
	req, err := r.Parse()
	if err != nil {
		return dto.SampleResult{}, err
	}

	// 3. get start snapshot
	startsnap, err := d.SnapshotStates()
	if err != nil {
		return dto.SampleResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap
	restored := req.StartState != nil && len(req.StartState.StartStateSnap) != 0
	if restored {
		startsnap = req.StartState.StartStateSnap
		if err := d.RestoreStates(req.StartState.StartStateSnap); err != nil {
			return dto.SampleResult{}, errs.NewWarn("restore states err " + err.Error())
		}
	}

	// 4. run sampling into the reusable result buffer
	// run 的錯誤都發生在消耗亂數之前，回滾只需還原被覆蓋的起點
	if err := d.run(req); err != nil {
		if restored {
			if e := d.RestoreStates(rem); e != nil {
				return dto.SampleResult{}, errs.NewFatal("fall back err " + e.Error())
			}
		}
		return dto.SampleResult{}, err
	}

	// 5. get after snapshot
	aftersnap, err := d.SnapshotStates()
	if err != nil {
		if e := d.RestoreStates(rem); e != nil {
			return dto.SampleResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.SampleResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}
	d.SampleResult.State.StartStateSnap = startsnap
	d.SampleResult.State.AfterStateSnap = aftersnap

	// 6. restore if needed
	if restored {
		if err := d.RestoreStates(rem); err != nil {
			return dto.SampleResult{}, errs.NewFatal("restore states back err " + err.Error())
		}
	}

	// 7. dto
	return dto.NewSampleResultDTO(d.SampleResult)
}

// Fill 為對數常態填充的公開入口：count 筆 exp(mean + stddev*Z)。
// 快照語意與 Sample 相同（回應帶前後快照；帶入快照的請求不推進裝置）。
func (d *Device) Fill(r *dto.FillRequest) (dto.FillResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.valid(r.EngineID, r.EngineName); err != nil {
		return dto.FillResult{}, err
	}
	if err := d.validFill(r.Count, r.Mean, r.Stddev); err != nil {
		return dto.FillResult{}, err
	}
	snap, err := r.StartSnap()
	if err != nil {
		return dto.FillResult{}, err
	}

	startsnap, err := d.SnapshotStates()
	if err != nil {
		return dto.FillResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap
	restored := len(snap) != 0
	if restored {
		startsnap = snap
		if err := d.RestoreStates(snap); err != nil {
			return dto.FillResult{}, errs.NewWarn("restore states err " + err.Error())
		}
	}

	out := make([]float64, r.Count)
	d.path.fill(d.states, d.es.Blocks, d.es.Lanes, r.Mean, r.Stddev, out)

	aftersnap, err := d.SnapshotStates()
	if err != nil {
		if e := d.RestoreStates(rem); e != nil {
			return dto.FillResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.FillResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}

	if restored {
		if err := d.RestoreStates(rem); err != nil {
			return dto.FillResult{}, errs.NewFatal("restore states back err " + err.Error())
		}
	}

	return dto.FillResult{
		EngineName: d.engineName,
		EngineID:   d.engineID,
		Count:      r.Count,
		Mean:       r.Mean,
		Stddev:     r.Stddev,
		Values:     out,
		State: dto.SampleState{
			StartStateB64U: corefmt.EncodeBase64URL(startsnap),
			AfterStateB64U: corefmt.EncodeBase64URL(aftersnap),
		},
	}, nil
}

// SampleInternal 直接取得內部 SampleResult；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過引擎身分檢查與前後快照，直接以 d.SampleRequest 的內容取樣；
// 邊界檢查失敗時回傳 nil
func (d *Device) SampleInternal() *buf.SampleResult {
	if err := d.run(d.SampleRequest); err != nil {
		return nil
	}
	return d.SampleResult
}

// FillInternal 直接把 out 填滿對數常態亂數；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過所有檢查，也不拍攝前後快照
func (d *Device) FillInternal(mean, stddev float64, out []float64) {
	d.path.fill(d.states, d.es.Blocks, d.es.Lanes, mean, stddev, out)
}

func (d *Device) valid(id spec.EID, name string) error {
	if d.engineID != id {
		return errs.NewWarn("engine id is not matched")
	}
	if d.engineName != name {
		return errs.NewWarn("engine name is not matched")
	}
	return nil
}

// SnapshotStates 取得狀態陣列暫存 當前僅提供取得 StateArray 狀態
//
// 之後要實作斷線重連時候提供 checkpoint 加入必要恢復資訊時實作
// SnapShot() <- 保留語意
func (d *Device) SnapshotStates() ([]byte, error) {
	return d.states.Snapshot()
}

// RestoreStates 恢復狀態陣列暫存 當前僅提供恢復 StateArray 狀態
//
// 之後要實作斷線重連時候提供 checkpoint 加入必要恢復資訊時實作
// Restore() <- 保留語意
func (d *Device) RestoreStates(src []byte) error {
	return d.states.Restore(src)
}

// Setting 回傳裝置綁定的引擎設定（唯讀，請勿修改）。
func (d *Device) Setting() *spec.EngineSetting {
	return d.es
}

// Close 釋放 bank 持有的資源（例如 mmap 檔案）；未啟用 bank 時為 no-op。
func (d *Device) Close() error {
	if d.banks == nil {
		return nil
	}
	return d.banks.Close()
}
