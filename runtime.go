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
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/gridlab/catalog"
	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/spec"
)

type EngineRuntime struct {
	// build-time 來源（只讀引用）
	gl *Gridlab // 方便取 catalog/prng factory 與共用一些 helper

	// data-plane：關鍵主池（每個引擎一個 pool）
	pools map[spec.EID]*DevicePool
	ids   []spec.EID // 固定順序，用於觀測/列舉（來自 cat.IDs()）

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	// runtime 行為設定（一期先簡單，之後可擴展）
	poolSize int // 每個引擎的池大小（BuildRuntime(n) 的 n）
}

func (rt *EngineRuntime) Sample(ctx context.Context, req *dto.SampleRequest) (dto.SampleResult, error) {
	select {
	case <-ctx.Done():
		// 如果通知取消
		return dto.SampleResult{}, errs.NewWarn("sample canceled/timeout: " + ctx.Err().Error())
	case <-rt.done:
		// done is the source of truth; keep a fast boolean for cheap reads/telemetry.
		rt.closed.Store(true)
		return dto.SampleResult{}, errs.NewFatal("engine runtime closed: " + rt.ClosedReason())
	default:
	}

	dp, ok := rt.pools[req.EngineID]
	if !ok {
		return dto.SampleResult{}, errs.NewWarn("engine id not found")
	}

	// pool 自己會處理 done / close / rebuild / metrics
	return dp.Sample(ctx, req)
}

func (rt *EngineRuntime) Fill(ctx context.Context, req *dto.FillRequest) (dto.FillResult, error) {
	select {
	case <-ctx.Done():
		// 如果通知取消
		return dto.FillResult{}, errs.NewWarn("fill canceled/timeout: " + ctx.Err().Error())
	case <-rt.done:
		// done is the source of truth; keep a fast boolean for cheap reads/telemetry.
		rt.closed.Store(true)
		return dto.FillResult{}, errs.NewFatal("engine runtime closed: " + rt.ClosedReason())
	default:
	}

	dp, ok := rt.pools[req.EngineID]
	if !ok {
		return dto.FillResult{}, errs.NewWarn("engine id not found")
	}

	// pool 自己會處理 done / close / rebuild / metrics
	return dp.Fill(ctx, req)
}

// Summary 列出 runtime 內所有引擎的摘要（委派給組裝器的 cache）。
func (rt *EngineRuntime) Summary() ([]catalog.Summary, error) {
	return rt.gl.Summary()
}

// Metrics 依固定順序（cat.IDs()）回傳每個引擎池的觀測快照。
func (rt *EngineRuntime) Metrics() []DevicePoolMetrics {
	ms := make([]DevicePoolMetrics, 0, len(rt.ids))
	for _, id := range rt.ids {
		if dp, ok := rt.pools[id]; ok {
			ms = append(ms, dp.Metrics())
		}
	}
	return ms
}

// Gridlab 回傳 build-time 的組裝器（只讀用途，例如建 Verifier/Replay）。
func (rt *EngineRuntime) Gridlab() *Gridlab {
	return rt.gl
}

// Close transitions the runtime into a closed state. It is safe to call multiple times.
func (rt *EngineRuntime) Close() {
	rt.closeWithReason("closed")
}

// closeWithReason closes the runtime and records the reason (written once).
func (rt *EngineRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)

		for _, id := range rt.ids {
			if dp, ok := rt.pools[id]; ok {
				dp.Close()
			}
		}
	})
}

// Closed reports whether the runtime has been closed.
func (rt *EngineRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *EngineRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
