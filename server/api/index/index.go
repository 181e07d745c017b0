// Package index 提供服務根路徑（"/"）的迎賓頁。
//
// 目的：
//   - 人類打開瀏覽器時能一眼看到這是哪個服務、有哪些入口。
//   - 不依賴任何引擎狀態，永遠可回應（可當作最粗略的存活檢查）。
package index

import "net/http"

const indexHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>Gridlab</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 720px; margin: 48px auto; padding: 20px 24px; background:#111827; border:1px solid #1f2937; border-radius:12px; }
    h1 { margin: 0 0 6px; font-size: 24px; }
    p { color:#94a3b8; margin: 4px 0 18px; }
    ul { list-style:none; padding:0; margin:0; }
    li { padding: 8px 0; border-top: 1px solid #1f2937; font-family: ui-monospace, Menlo, Consolas, monospace; font-size: 14px; }
    a { color:#38bdf8; text-decoration:none; }
    .m { display:inline-block; min-width:3.5em; color:#22c55e; font-weight:600; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>Gridlab</h1>
    <p>block-parallel categorical sampling engine</p>
    <ul>
      <li><span class="m">GET</span> <a href="/v1/presets">/v1/presets</a> — 已註冊引擎清單</li>
      <li><span class="m">GET</span> <a href="/v1/metrics">/v1/metrics</a> — device pool 指標</li>
      <li><span class="m">POST</span> /v1/sample — 類別取樣（weights 或 preset）</li>
      <li><span class="m">POST</span> /v1/lognormal — 對數常態填充</li>
      <li><span class="m">POST</span> /v1/verify — 頻率收斂驗證（卡方報表）</li>
      <li><span class="m">POST</span> /v1/lognormalfit — 對數常態擬合驗證</li>
      <li><span class="m">POST</span> /v1/verifybycfg — 以臨時引擎設定驗證</li>
      <li><span class="m">POST</span> /v1/stat — 離線取樣紀錄轉報表</li>
      <li><span class="m">GET</span> <a href="/dev">/dev</a> — 開發面板（僅 ModeDev）</li>
    </ul>
  </div>
</body>
</html>`

// IndexHandlerFn 回傳靜態迎賓頁。
func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
