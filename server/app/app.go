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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// defaultShutdownTimeout 是優雅關閉的預設期限。
// 取樣請求在 handler 層已有自己的 ctx timeout，5 秒足夠讓在途請求排空。
const defaultShutdownTimeout = 5 * time.Second

// App 啟動所有註冊的 Component，並在收到 OS 信號或任一 Component
// 結束時協調優雅關閉。
//
// 關閉順序：
//   - Component 依「註冊順序的反向」關閉。後註冊的元件通常疊在先註冊者
//     之上（HTTP server 蓋在 engine runtime 之上），反向走訪可以先停止
//     對外收件，再拆底下的資源。
//   - OnShutdown hook 在所有 Component 關閉後執行，同樣反向。
type App struct {
	comps   []Component
	hooks   []func()
	timeout time.Duration
}

// New 建立一個新的 App 實例。
func New() *App {
	return &App{timeout: defaultShutdownTimeout}
}

// NewWith 是 New 的語法糖，允許在建立時直接註冊多個 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 將一個 Component 註冊到 App 中，該 Component 將在 Run 時被管理。
func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// OnShutdown 登記一個在所有 Component 關閉之後執行的清理函數。
// 典型用途：關閉 EngineRuntime（device pool 停止借出、回收狀態機）。
// hook 沒有 ctx 與 error；需要期限控制的資源請改實作 Component。
func (a *App) OnShutdown(fn func()) {
	if fn == nil {
		return
	}
	a.hooks = append(a.hooks, fn)
}

// SetShutdownTimeout 調整優雅關閉的期限；d <= 0 時維持原值。
func (a *App) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		a.timeout = d
	}
}

// Run 以 goroutine 並行啟動所有註冊的 Component，並阻塞直到收到
// OS 終止信號（SIGINT/SIGTERM）或任一 Component 的 Run 返回。
//   - 收到 OS 終止信號：觸發優雅關閉並返回 nil，代表正常結束。
//   - 任一 Component 先行返回（含 nil）：觸發優雅關閉並回傳該值。
//
// 假設每個 Component.Run 是阻塞調用，代表該元件的生命週期。
func (a *App) Run() error {
	// errCh 收集第一個結束的 Component 的回傳值
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	// 等待終止信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// 兩種退出路徑：OS 信號或 Component 先行結束
	select {
	case <-quit:
		a.gracefulShutdown()
		return nil
	case err := <-errCh:
		a.gracefulShutdown()
		return err
	}
}

// gracefulShutdown 在共用的 timeout 內反向關閉所有 Component，
// 之後反向執行 OnShutdown hook。
// 若某個實作無法在期限內關閉，由實作者決定是否強制中止／忽略錯誤。
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	for i := len(a.comps) - 1; i >= 0; i-- {
		if err := a.comps[i].Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown err: %v\n", err)
		}
	}
	for i := len(a.hooks) - 1; i >= 0; i-- {
		a.hooks[i]()
	}
}
