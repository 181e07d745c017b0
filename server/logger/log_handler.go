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

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// enum LogMode
type LogMode uint8

const (
	ModeDev LogMode = iota
	ModeProd
	ModeSilence
)

// =========================================================
// 本包提供兩層組裝：
//
// (A) LogMode 快速入口：NewDefaultLogger / NewDefaultAsyncLogger。
//     Dev = Text+stderr+Debug，Prod = JSON+stdout+Info，Silence = 全丟。
//
// (B) 自組 Handler：呼叫端自己建 slog.NewJSONHandler / ReplaceAttr /
//     LevelVar...，再用 NewLogger 或 NewAsyncHandler 接進來。
//
// AsyncHandler 是重點：access log 每個 request 寫一筆（reqid/status/bytes/
// latency），量大時同步寫 stderr 會把 I/O 延遲算進回應時間。async 版只做
// enqueue，由背景 goroutine 慢慢寫；buffer 滿了就丟，絕不回壓請求路徑。
// =========================================================

// NewDefaultLogger returns a synchronous *slog.Logger for the given mode.
// 同步版：寫 log 的 I/O 發生在呼叫端 goroutine。CLI 工具用這個就夠。
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(buildHandler(mode))
}

// NewDefaultAsyncLogger returns an async *slog.Logger for the given mode.
// server 入口建議用這個：8192 的隊列對單機 lab 流量綽綽有餘。
func NewDefaultAsyncLogger(mode LogMode) *slog.Logger {
	return slog.New(NewAsyncHandler(buildHandler(mode), 8192))
}

// NewLogger wraps a caller-assembled Handler into a *slog.Logger.
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = buildHandler(ModeDev)
	}
	return slog.New(h)
}

// AsyncHandler makes any slog.Handler non-blocking.
//
//   - Handle 只 enqueue（channel send），不等 I/O。
//   - 背景 goroutine 逐筆呼叫 next.Handle(...) 寫出。
//   - 隊列滿時丟棄並累計 Dropped()；Close() 排空隊列後，若有丟棄會補一筆
//     warn 記錄丟棄筆數，讓 drop 不會無聲無息。
//
// WithAttrs / WithGroup 產生的衍生 handler 共用同一條隊列，所以整個
// logger 樹只有一個背景 goroutine、一個 buffer。
//
// 注意：slog.Logger 會吃掉 Handle 回傳的 error；若要處理下游 I/O 錯誤，
// 得包在 next handler 裡自己做。
type AsyncHandler struct {
	next slog.Handler
	d    *dispatcher
}

// dispatcher 是 AsyncHandler 樹共享的單一消費端。
type dispatcher struct {
	queue chan entry
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	// dropped 累計因隊列滿（或已 Close）而丟棄的筆數。
	dropped atomic.Uint64
}

// entry 帶著「哪個衍生 handler 收的」一起排隊，寫出時才能還原
// WithAttrs / WithGroup 的前綴。
type entry struct {
	ctx  context.Context
	rec  slog.Record
	sink slog.Handler
}

func (e entry) flush() {
	if e.sink == nil {
		return
	}
	_ = e.sink.Handle(e.ctx, e.rec)
}

// NewAsyncHandler wraps next with a buffered background writer.
// buf 是隊列長度：越大越不容易丟，但 Close() 要排空的量也越大。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = buildHandler(ModeDev)
	}
	if buf <= 0 {
		buf = 1024
	}

	d := &dispatcher{
		queue: make(chan entry, buf),
		quit:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return &AsyncHandler{next: next, d: d}
}

func (h *AsyncHandler) Ready() bool {
	return (h != nil && h.d != nil)
}

// Dropped returns how many records were discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.d == nil {
		return 0
	}
	return h.d.dropped.Load()
}

// Close stops accepting records, drains the queue, then reports drops if any.
// 不屬於 slog.Handler 介面；只有握著 *AsyncHandler 的組裝端叫得到。
func (h *AsyncHandler) Close() {
	if h == nil || h.d == nil {
		return
	}
	h.d.once.Do(func() { close(h.d.quit) })
	h.d.wg.Wait()

	if n := h.d.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "logger.dropped", 0)
		rec.AddAttrs(slog.Uint64("count", n))
		_ = h.next.Handle(context.Background(), rec)
	}
}

func (d *dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case e := <-d.queue:
			e.flush()
		case <-d.quit:
			d.drain()
			return
		}
	}
}

// drain 把 quit 當下已入隊的 log 寫完才收工。
func (d *dispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			e.flush()
		default:
			return
		}
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.d == nil {
		return nil
	}

	// Close() 之後不再收新 log。
	select {
	case <-h.d.quit:
		h.d.dropped.Add(1)
		return nil
	default:
	}

	// Clone 複製 attrs，Record 才能安全跨 goroutine。
	// ctx 去掉 cancel：實際寫出多半在 request 結束之後，若下游 handler
	// 會看 ctx（trace id 之類）還拿得到 value，但不會碰上已取消的 ctx。
	e := entry{ctx: context.WithoutCancel(ctx), rec: r.Clone(), sink: h.next}

	select {
	case h.d.queue <- e:
		return nil
	default:
		h.d.dropped.Add(1)
		return nil
	}
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}

// NewAsync builds an async *slog.Logger from LogMode defaults and also returns
// the handler, so the caller can Close() it on shutdown or poll Dropped().
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(buildHandler(mode), buf)
	return slog.New(ah), ah
}

func buildHandler(logmode LogMode) slog.Handler {
	switch logmode {
	case ModeDev:
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	case ModeProd:
		// 正式環境：JSON + stdout，log 收集器（Loki/Promtail）直接吃。
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	case ModeSilence:
		return slog.NewTextHandler(io.Discard, nil)
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
}
