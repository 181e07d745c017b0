package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// RequestID 將 chi 的 request id 植入 ctx，並回寫到 X-Request-Id header。
// 取樣回應帶有可回放的 state snapshot；客戶端回報「這一筆怪怪的」時，
// 用 header 裡的 id 就能對上 access log 與 panic log 的同一次請求。
func RequestID(next http.Handler) http.Handler {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimid.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
	return chimid.RequestID(echo)
}

// GetReqId 取出當前請求的 request id；沒有掛 RequestID middleware 時回空字串。
func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}
