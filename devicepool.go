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
	"context"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
)

// DevicePool 專門管理「某一款引擎」的所有裝置實例。
// 它透過兩個通道管理裝置生命週期：
//  1. pool：健康且可用的裝置，供 Sample() / Fill() 借出 / 歸還。
//  2. broken：在運作過程中發生錯誤或 panic 的壞裝置，送往此通道以便後續檢查、維修或丟棄。
//
// 若某座裝置於取樣執行期間發生 panic 或 fatal error，該裝置會被送至 broken，並立即補上一座新裝置以維持容量。
// 整體機制確保整個系統在高併發下仍保持穩定與可用性。
type DevicePool struct {
	engineName    string
	engineId      spec.EID
	es            *spec.EngineSetting
	pf            core.PRNGFactory
	bankFS        fs.FS
	initSeed      int64
	seedMaker     *seedMaker
	pool          chan *Device  // 可用裝置的通道，用於取得和歸還裝置
	broken        chan *Device  // 壞掉裝置的通道，用於送修或丟棄壞掉裝置
	done          chan struct{} // 關閉訊號：關閉後不再允許借出/歸還/補機
	closeOnce     sync.Once     // 確保 Close() 只執行一次
	poolsize      int           // 好裝置
	rebuild       atomic.Int32  // 重起裝置次數
	inflight      atomic.Int32  // 使用中
	panics        atomic.Int32  // panic 次數
	fatals        atomic.Int32  // fatal 次數（裝置狀態不可信）
	closeReason   atomic.Value  // string: 關閉原因
	closeInflight atomic.Int32  // 關閉當下 inflight（快照）
	closeAvail    atomic.Int32  // 關閉當下 pool 可用數量（len(pool) 快照）
	closeBroken   atomic.Int32  // 關閉當下 broken backlog（len(broken) 快照）
}

// newDevicePool 建立指定引擎的裝置池。
//   - n: 裝置數量（至少為 1）
//   - es: 引擎設定
//
// 初始化內容包含：
//   - 建立 pool（可用裝置）與 broken（壞裝置）兩個 channel
//   - 預先建立 n 座裝置並放入 pool，以便立即提供服務
func newDevicePool(n int, es *spec.EngineSetting, pf core.PRNGFactory, bankFS fs.FS, seed int64) (*DevicePool, error) {
	n = max(1, n) // 確保裝置數量至少為1
	p := &DevicePool{
		engineName: es.EngineName,
		engineId:   es.EngineID,
		es:         es,
		pf:         pf,
		bankFS:     bankFS,
		initSeed:   seed,
		seedMaker:  newSeedMaker(seed),
		pool:       make(chan *Device, n),   // 建立有緩衝的裝置通道，容量為 n
		broken:     make(chan *Device, 100), // 建立有緩衝的壞掉裝置通道，容量固定為100
		done:       make(chan struct{}),
		poolsize:   n,
		inflight:   atomic.Int32{},
		rebuild:    atomic.Int32{},
	}

	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	// 上架裝置，將 n 座新裝置放入池中
	for i := 0; i < n; i++ {
		d, err := newDeviceWithSeed(es, pf, bankFS, p.seedMaker.next())
		if err != nil {
			return nil, err
		}
		p.pool <- d
	}
	return p, nil
}

// Close 進入關閉狀態：
//   - 通知之後所有 Sample()/Fill() 應該直接回error
//   - defer 歸還/補機時會觀察 done，避免對已關閉狀態進行 send
func (p *DevicePool) Close() {
	p.closeWithReason("closed")
}

// Closed 回報池是否已進入關閉狀態。
func (p *DevicePool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason 進入關閉狀態並記錄原因（thread-safe, reason 只會被寫入一次）。
// reason 建議使用固定字串或小枚舉字串，方便 metrics/telemetry 聚合。
func (p *DevicePool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		// 進入關閉狀態的瞬間做一次快照，方便外部觀測與故障排查。
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
	})
}

// isFatalErr 用於判斷本次錯誤是否代表「裝置狀態不可信」需要淘汰/補機。
//
// 原則：
//   - panic 一律視為 broken（由 caller 端的 defer/recover 處理）
//   - 一般的 request/validation 類錯誤不應淘汰裝置（例如 BadRequest）
//   - 只有錯誤型別本身明確宣告「fatal」時才視為 broken
func isFatalErr(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*errs.E); ok {
		if e.ErrLv == errs.Fatal {
			return true
		}
	}
	return false
}

// withDevice 是借出/歸還/補機流程的共同底座：Sample 與 Fill 都走這裡。
// op 只用於組 ctx 取消時的錯誤訊息（例如 "sample canceled/timeout: ..."）。
func (p *DevicePool) withDevice(ctx context.Context, op string, fn func(d *Device) error) (err error) {
	var d *Device
	borrowed := false
	select {
	case <-p.done:
		// 先觀察是否已關閉：關閉直接回失敗，不阻塞
		return errs.NewFatal("device pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		// 如果通知取消
		return errs.NewWarn(op + " canceled/timeout: " + ctx.Err().Error())
	case d = <-p.pool:
		// 有取出裝置
		borrowed = true
		p.inflight.Add(1)
		// ok
	}

	// 理論上不會拿到 nil；若發生代表 pool 有嚴重問題。
	if d == nil {
		return errs.NewFatal("device pool got nil device")
	}

	var isPanic bool

	defer func() {
		if borrowed {
			// 有借有還 再借不難
			p.inflight.Add(-1)
		}
		if r := recover(); r != nil {
			// 系統恢復
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("device %s panic : %v", d.engineName, r))
		}

		// 若已關閉，直接丟棄裝置（不歸還、不補機），避免 send 到已停止的系統。
		if p.Closed() {
			return
		}

		// 若發生 panic 或「致命錯誤」，表示裝置狀態不可信，需要送修並補機。
		// 注意：一般的 request/validation error（例如 BadRequest）不應淘汰裝置。
		if isPanic || isFatalErr(err) {
			if !isPanic && isFatalErr(err) {
				p.fatals.Add(1)
			}
			// 1) 壞裝置送入 broken（避免阻塞）
			select {
			case p.broken <- d:
			default:
				// broken 通道滿代表系統可能正在連續故障：進入關閉狀態讓上層接管維護。
				p.closeWithReason("overwhelmed_by_failures")
				// 若外層尚未有錯誤，補一個更明確的致命訊息
				if err == nil {
					err = errs.NewFatal("device pool overwhelmed by failures")
				}
				return
			}

			// 2) 補一座新裝置（維持容量）
			newDev, buildErr := newDeviceWithSeed(p.es, p.pf, p.bankFS, p.seedMaker.next())
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.NewFatal(fmt.Sprintf("device %s can not build", p.engineName))
				p.closeWithReason("rebuild_failed")
				return
			}

			// 補機前再看一次是否已關閉（避免並行 Close 後 send / block）
			select {
			case <-p.done:
				return
			case p.pool <- newDev:
				// ok
			}

			return
		}

		// 若有錯誤但非致命（多半是 request/validation 類錯誤），裝置仍然是健康的：歸還 pool 並把 err 原樣回傳。
		// 注意：此處不改寫 err。
		select {
		case <-p.done:
			return
		case p.pool <- d:
			// ok
		}
	}()

	// 執行裝置上的操作
	err = fn(d)
	return
}

// Sample 借出一座裝置執行取樣，完成後歸還（或送修補機）。
func (p *DevicePool) Sample(ctx context.Context, req *dto.SampleRequest) (res dto.SampleResult, err error) {
	err = p.withDevice(ctx, "sample", func(d *Device) error {
		r, sampleErr := d.Sample(req)
		if sampleErr != nil {
			return sampleErr
		}
		res = r
		return nil
	})
	return
}

// Fill 借出一座裝置執行對數常態填充，完成後歸還（或送修補機）。
func (p *DevicePool) Fill(ctx context.Context, req *dto.FillRequest) (res dto.FillResult, err error) {
	err = p.withDevice(ctx, "fill", func(d *Device) error {
		r, fillErr := d.Fill(req)
		if fillErr != nil {
			return fillErr
		}
		res = r
		return nil
	})
	return
}

func (dp *DevicePool) PoolSize() int {
	return dp.poolsize
}

func (dp *DevicePool) Inflight() int {
	return int(dp.inflight.Load())
}

func (dp *DevicePool) ReBuild() int {
	return int(dp.rebuild.Load())
}

func (dp *DevicePool) ClosedReason() string {
	if v := dp.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (dp *DevicePool) Panics() int {
	return int(dp.panics.Load())
}

func (dp *DevicePool) Fatals() int {
	return int(dp.fatals.Load())
}

// DevicePoolMetrics 是一期提供的「拉取式（pull）」觀測快照。
//
// 設計原則：
//   - 不綁任何 metrics/telemetry SDK（Prometheus / OpenTelemetry 等），由上層自己決定如何輸出。
//   - 欄位值以讀取當下為主；其中 Available/brokenBacklog 來自 len(chan)，在高併發下是「近似值」但足夠用於營運觀測。
//   - 關閉瞬間的快照（CloseInflight/CloseAvail/Closebroken）只會在 Close 時寫入一次，用於事後排查。
type DevicePoolMetrics struct {
	EngineName string   `json:"engine_name"`
	EngineID   spec.EID `json:"engine_id"`

	PoolSize      int    `json:"pool_size"`      // 目標容量（初始化指定）
	Available     int    `json:"available"`      // 當下可借出的裝置數（len(pool)）
	Inflight      int    `json:"inflight"`       // 使用中（借出未歸還）
	BrokenBacklog int    `json:"broken_backlog"` // broken channel 當下 backlog（len(broken)）
	Rebuild       int    `json:"rebuild"`        // 補機次數
	Panics        int    `json:"panics"`         // panic 次數
	Fatals        int    `json:"fatals"`         // fatal 次數
	Closed        bool   `json:"closed"`         // 是否已關閉
	CloseReason   string `json:"close_reason"`   // 關閉原因

	CloseInflight int `json:"close_inflight"` // Close() 當下 inflight（-1 表示尚未關閉）
	CloseAvail    int `json:"close_avail"`    // Close() 當下 available（-1 表示尚未關閉）
	Closebroken   int `json:"close_broken"`   // Close() 當下 broken backlog（-1 表示尚未關閉）
}

// Metrics 回傳一期的觀測快照；上層可用於 log、/metrics、或餵給 Prometheus/OTEL exporter。
func (dp *DevicePool) Metrics() DevicePoolMetrics {
	closed := dp.Closed()
	m := DevicePoolMetrics{
		EngineName:    dp.engineName,
		EngineID:      dp.engineId,
		PoolSize:      dp.poolsize,
		Available:     len(dp.pool),
		Inflight:      int(dp.inflight.Load()),
		BrokenBacklog: len(dp.broken),
		Rebuild:       int(dp.rebuild.Load()),
		Panics:        int(dp.panics.Load()),
		Fatals:        int(dp.fatals.Load()),
		Closed:        closed,
		CloseReason:   dp.ClosedReason(),
		CloseInflight: int(dp.closeInflight.Load()),
		CloseAvail:    int(dp.closeAvail.Load()),
		Closebroken:   int(dp.closeBroken.Load()),
	}
	return m
}

// Available 回傳當下 pool 可用裝置數（len(pool)）。在高併發下為近似值。
func (dp *DevicePool) Available() int {
	return len(dp.pool)
}
