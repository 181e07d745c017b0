package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover 攔截 handler panic：記錄 stack 後回 500，讓單一請求的錯誤
// 不至於砍掉整個 server。
//
// 引擎側的 kernel panic（權重形狀錯誤、lane 越界）已經在 device 層被
// 攔下並轉成 error 與 pool 的 panic 計數；會走到這裡的幾乎都是 handler
// 自身的程式錯誤，所以 stack 一律進 log。
//
// log 為 nil 時仍會 recover 與回 500，只是不記錄。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http 以這個 sentinel 要求中止連線，不能吞掉
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if log != nil {
					log.LogAttrs(
						r.Context(),
						slog.LevelError,
						"http.panic",
						slog.String("reqid", GetReqId(r)),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
				w.WriteHeader(http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
