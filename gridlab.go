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

// Package gridlab 提供 Gridlab 引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Gridlab 視為一個「可被後端/驗證器使用的 runtime」，它負責把下列兩個必需的地基組裝在一起，並提供建立 Device 的入口：
//  1. Catalog：引擎目錄（Single Source of Truth / SSOT），定義有哪些取樣引擎、各自對應的設定檔名稱（ConfigName）。
//  2. PRNGFactory：亂數狀態工廠（PRNG factory），保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - Gridlab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - Gridlab 會持有一份 Catalog（你要跑哪一批引擎/設定檔）與一個 PRNGFactory 策略（所有引擎共用注入工廠，或依設定檔各自選擇 generator）。
//   - Device 是對外提供 Sample 的最小單位；取樣演算法開發者主要操作的是 sdk 內的型別與資料結構。
//
// 典型使用情境：
//   - 後端服務（HTTP / gRPC）：由 Gridlab 建立 Device，Device 對外提供 Sample。
//   - 驗證器（verify）：由 Gridlab 建立多座 Device 進行大量取樣與統計檢定。
//
// 注意：此套引擎目前以分類分佈取樣為中心（Sample -> Categories），不是泛用數值運算框架。
package gridlab

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/gridlab/catalog"
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//   - 甚至可以用自製的 MultiFS 來合併多個來源。
//
// Gridlab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Gridlab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把兩個必需的地基組合起來：
//  1. Catalog：引擎目錄（Single Source of Truth / SSOT），定義有哪些取樣引擎、各自對應的設定檔名稱。
//  2. PRNGFactory：亂數狀態工廠（PRNG factory），保證可重現（reproducible）與可審計（auditable）。
//
// Gridlab 本身不綁定任何「檔案路徑」概念：設定檔來源一律由 fs.FS 提供。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、掃描設定檔、檢查重複與缺漏。
//   - 執行階段（runtime）：依據引擎 ID 產生 Device，並在 Device 上執行 Sample。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 Gridlab instance」內（不同 Gridlab 之間不做全域保證）。
//   - 你要跑哪一批引擎、哪一套設定檔，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Device 並對外服務），不建議再變更 Catalog（避免非預期行為）。
//
// 實務例子（概念示意，細節依你的實作為準）：
//
//	// 1) 準備 configs（通常是 go:embed 或 DirFS）
//	// 2) 決定 PRNG 策略（nil = 依各設定檔的 generator 欄位選擇）
//	// 3) 組裝 Gridlab，取得可建立 Device 的入口
//	//	lab, _ := gridlab.New(nil, gridlab.Configs(cfgFS), nil)
//	//	d, _ := lab.NewDevice(1001)
//	//	// d.Sample(...) -> 取得結果（通常再轉成 DTO 回傳）
type Gridlab struct {
	cat    *catalog.Catalog
	pf     core.PRNGFactory
	bankFS fs.FS
	sum    []catalog.Summary
}

// New 建立一個 Gridlab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（通常同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會保存 PRNG 策略，確保由這個 Gridlab 建出來的 Device 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - pf 可以為 nil：nil 表示「依各引擎設定檔的 generator 欄位選擇 PRNG 家族」；
//     非 nil 則覆蓋所有引擎（測試注入假 RNG 時最常用）。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 EngineSetting。
//   - bankFS 可以為 nil：只有設定檔開啟 bank 的引擎才需要它，建立該引擎的
//     Device 時才會讀取。
//
// 回傳的 Gridlab 會持有：cat（目錄）、pf（RNG 策略）、bankFS（矩陣庫來源）。
func New(pf core.PRNGFactory, cfgs []fs.FS, bankFS fs.FS) (*Gridlab, error) {
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	lab := &Gridlab{
		cat:    cata,
		pf:     pf,
		bankFS: bankFS,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 Gridlab instance。
//
// 回傳的 Gridlab 會持有：cat（目錄）、pf（RNG 策略）、bankFS（矩陣庫來源）。
func NewAuto(pf core.PRNGFactory, cfgs []fs.FS, bankFS fs.FS) (*Gridlab, error) {
	lab, err := New(pf, cfgs, bankFS)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (p *Gridlab) Register(ents ...catalog.Entry) error {
	return p.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *spec.EngineSetting，並用設定檔內宣告的 EngineID/EngineName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：會依檔名排序後再處理，確保行為 determinism（方便重現與除錯）。
//
// 注意：
//   - RegisterAll 只負責「把設定檔宣告的引擎資訊放進 Catalog」。
//
// 幾何/精度設定是否合理（blocks、lanes、precision、generator），屬於後續 Gridlab 建立 Device 時的責任。
func (p *Gridlab) RegisterAll() error {
	cfgs := p.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[spec.EID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				es   *spec.EngineSetting
				gerr error
			)
			switch ext {
			case ".yaml", ".yml":
				es, gerr = spec.GetEngineSettingByYAML(raw)
			case ".json":
				es, gerr = spec.GetEngineSettingByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if gerr != nil {
				return errs.NewFatal(fmt.Sprintf("parse enginesetting failed: %s", base))
			}

			name := strings.TrimSpace(es.EngineName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("engine name required: %s", base))
			}

			id := es.EngineID
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate engine id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := p.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("engine id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate engine name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := p.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("engine name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			entries = append(entries, catalog.Entry{
				EID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return p.cat.Register(entries...)
}

func (p *Gridlab) Freeze() {
	p.cat.Freeze()
}

func (p *Gridlab) EntryById(id spec.EID) (catalog.Entry, bool) {
	return p.cat.GetByID(id)
}

func (p *Gridlab) EntryByName(name string) (catalog.Entry, bool) {
	return p.cat.GetByName(name)
}

// SettingById 解析並回傳引擎的完整 EngineSetting。
// 需要設定檔延伸區塊（如 fixed 內嵌的矩陣設計圖）的工具程式使用。
func (p *Gridlab) SettingById(id spec.EID) (*spec.EngineSetting, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return p.cat.EngineSettingById(id)
}

func (p *Gridlab) IDs() []spec.EID {
	return p.cat.IDs()
}

func (p *Gridlab) All() []catalog.Entry {
	return p.cat.All()
}

func (p *Gridlab) Summary() ([]catalog.Summary, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if p.sum != nil {
		return p.sum, nil
	}
	ids := p.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		es, err := p.cat.EngineSettingById(id)
		if err != nil {
			return nil, errs.NewFatal("parse engine setting failed")
		}
		s := catalog.Summary{
			EID:       id,
			Name:      es.EngineName,
			Blocks:    es.Blocks,
			Lanes:     es.Lanes,
			Precision: es.Precision,
			Generator: es.Generator,
		}
		cs = append(cs, s)
	}
	p.sum = cs
	return p.sum, nil
}

// NewDevice 依據 Catalog 內的引擎 ID 建立一座 Device。
//
// 行為：
//  1. 由 Catalog 取得對應的 EngineSetting（通常來自 fs.FS 內的 YAML/JSON）。
//  2. 以 PRNG 策略產生狀態陣列（seed 由 crypto/rand 產生）。
//  3. 依 Precision 設定實例化取樣管線，並在設定要求時預載 bank。
//
// 注意：seed 會被記錄在 Device 內（initseed），用於追溯/重現；真正的可審計能力以 StateArray 的 Snapshot/Restore 合約為準。
func (p *Gridlab) NewDevice(id spec.EID) (*Device, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.EngineSettingById(id)
	if err != nil {
		return nil, err
	}
	return newDevice(es, p.pf, p.bankFS)
}

// NewDeviceWithSeed 與 NewDevice 相同，但由呼叫端指定初始 seed。
//
// 使用情境：
//   - 可重現的測試：同一份設定 + 同一個 seed，應產生一致的隨機序列（取決於 PRNG 實作）。
//
// 注意：seed 只是「出生入口」。若要在任意時間點完整重現，請使用 StateArray 的 Snapshot/Restore（以 []byte 交換狀態）。
func (p *Gridlab) NewDeviceWithSeed(id spec.EID, seed int64) (*Device, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.EngineSettingById(id)
	if err != nil {
		return nil, err
	}
	return newDeviceWithSeed(es, p.pf, p.bankFS, seed)
}

func (p *Gridlab) NewDeviceByJSON(raw []byte, seed int64) (*Device, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetEngineSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newDeviceWithSeed(cfg, p.pf, p.bankFS, seed)
}

func (p *Gridlab) NewDeviceByYAML(raw []byte, seed int64) (*Device, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetEngineSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newDeviceWithSeed(cfg, p.pf, p.bankFS, seed)
}

func (p *Gridlab) validCfg(cfg *spec.EngineSetting) error {
	ent, ok := p.cat.GetByID(cfg.EngineID)
	if !ok {
		return errs.NewWarn("eid not exist")
	}
	ent2, ok := p.cat.GetByName(cfg.EngineName)
	if !ok {
		return errs.NewWarn("engine name not exist")
	}
	if ent.EID != ent2.EID {
		return errs.NewWarn("engine id is not matched engine name")
	}
	return nil
}

func (p *Gridlab) NewVerifier(id spec.EID) (*Verifier, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.EngineSettingById(id)
	if err != nil {
		return nil, err
	}
	return newVerifier(es, p.pf, p.bankFS)
}

func (p *Gridlab) NewVerifierWithSeed(id spec.EID, seed int64) (*Verifier, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	es, err := p.cat.EngineSettingById(id)
	if err != nil {
		return nil, err
	}
	return newVerifierWithSeed(es, p.pf, p.bankFS, seed)
}

func (p *Gridlab) NewVerifierByJSON(raw []byte, seed int64) (*Verifier, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetEngineSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newVerifierWithSeed(cfg, p.pf, p.bankFS, seed)
}

func (p *Gridlab) NewVerifierByYAML(raw []byte, seed int64) (*Verifier, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := spec.GetEngineSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(cfg); err != nil {
		return nil, err
	}
	return newVerifierWithSeed(cfg, p.pf, p.bankFS, seed)
}

func (p *Gridlab) BuildRuntime(poolSize int) (*EngineRuntime, error) {
	// 1. 進入 runtime 前，catalog 必須 Freeze
	p.Freeze()

	ids := p.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no engines registered")
	}

	rt := &EngineRuntime{
		gl:       p,
		pools:    make(map[spec.EID]*DevicePool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	// 2. 先全建好（fail-fast + cleanup）
	for _, id := range ids {
		es, err := p.cat.EngineSettingById(id)
		if err != nil {
			return nil, err
		}

		seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		dp, err := newDevicePool(rt.poolSize, es, p.pf, p.bankFS, seed.Int64())
		if err != nil {
			return nil, err
		}
		rt.pools[id] = dp
	}
	return rt, nil
}

// NewReplay
//
// 注意只能由Gridlab起
// 只提供給Dev模式使用的重播器，重點是保持單裝置模式所以保持可重現性
func (p *Gridlab) NewReplay(eid spec.EID, seed int64) (*Replay, error) {
	vf, err := p.NewVerifierWithSeed(eid, seed)
	if err != nil {
		return nil, err
	}
	d, err := p.NewDeviceWithSeed(eid, seed)
	if err != nil {
		return nil, err
	}
	vfBe, err := vf.dBuf[0].SnapshotStates()
	if err != nil {
		return nil, err
	}
	dBe, err := d.SnapshotStates()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(dBe, vfBe) {
		return nil, errs.NewFatal("seeds are not equal")
	}
	rp := &Replay{
		vf:       vf,
		dev:      d,
		before:   dBe,
		before64: corefmt.EncodeBase64URL(dBe),
	}
	return rp, nil
}
