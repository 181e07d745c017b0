// Package app 管理長生命週期元件的統一啟動與關閉。
package app

import "context"

// Component 抽象任何「可啟動 / 可關閉」的長生命週期元件。
//   - Run() 應該是阻塞呼叫，直到元件停止為止（正常或錯誤）。
//   - Shutdown(ctx) 用於要求優雅關閉；實作方應該尊重 ctx deadline/cancel。
//
// 本 repo 的典型實例是 HTTP server（netsvr.ChiAdapter）。
// 沒有 Run 語意的資源（例如 EngineRuntime 與其 device pool）
// 不必硬湊出一個 Component；用 App.OnShutdown 登記關閉函數即可。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}
