package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	// 204 No Content, 304 Not Modified, 1xx Informational
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// CompressConfig 控制兩種編碼器的等級。
// 取樣回應是高度重複的 JSON 數字矩陣，最快檔位就有 5~10 倍的壓縮率，
// 再往上調等級只會吃掉 verify 已經很貴的 CPU。
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
}

// compressor 是 *zstd.Encoder 與 *gzip.Writer 的共同面：可寫、可重設、可收尾。
type compressor interface {
	io.Writer
	Reset(w io.Writer)
	Close() error
}

// scheme 一種編碼：名稱 + 編碼器池。
type scheme struct {
	name string
	pool sync.Pool
	make func(io.Writer) compressor
}

func (s *scheme) get(w io.Writer) compressor {
	if v := s.pool.Get(); v != nil {
		c := v.(compressor)
		c.Reset(w)
		return c
	}
	return s.make(w)
}

func (s *scheme) put(c compressor) {
	_ = c.Close()
	s.pool.Put(c)
}

// schemes 依偏好排序：zstd 較省 CPU 也壓得較小，gzip 留給老客戶端。
var schemes = []*scheme{
	{name: "zstd", make: newZstdCompressor},
	{name: "gzip", make: newGzipCompressor},
}

func newZstdCompressor(w io.Writer) compressor {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(DefaultCompressConfig.ZstdLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic(err)
	}
	return zw
}

func newGzipCompressor(w io.Writer) compressor {
	gw, _ := gzip.NewWriterLevel(w, DefaultCompressConfig.GzipLevel)
	return gw
}

// negotiate 依 schemes 的偏好順序挑出第一個客戶端接受的編碼；
// 全都不收（或 Accept-Encoding 為空）時回 nil。
func negotiate(accept string) *scheme {
	for _, sc := range schemes {
		if acceptsEncoding(accept, sc.name) {
			return sc
		}
	}
	return nil
}

// acceptsEncoding 檢查 Accept-Encoding 是否接受指定編碼。
// 逐一比對 token 並處理 q 值：q<=0 是顯式拒絕；x-gzip 視同 gzip。
// 不做完整的 q 值權重排序，偏好順序由 server 決定。
func acceptsEncoding(accept, name string) bool {
	for _, part := range strings.Split(accept, ",") {
		token, attrs, hasAttrs := strings.Cut(strings.TrimSpace(part), ";")
		token = strings.ToLower(strings.TrimSpace(token))
		if token != name && !(name == "gzip" && token == "x-gzip") {
			continue
		}
		if hasAttrs {
			attrs = strings.ReplaceAll(strings.ToLower(attrs), " ", "")
			if v, ok := strings.CutPrefix(attrs, "q="); ok {
				if q, err := strconv.ParseFloat(v, 64); err == nil && q <= 0 {
					continue
				}
			}
		}
		return true
	}
	return false
}

// --- ResponseWriter Wrapper ---

type compressResponseWriter struct {
	http.ResponseWriter
	w        io.Writer // 指向池借出的 compressor
	disabled bool      // 標記是否動態取消壓縮
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	// 1. 如果已停用壓縮 (204/304)，直接寫入底層
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}

	// 2. 防禦隱式 Header 發送
	cw.Header().Del("Content-Length")

	// 3. 嗅探 Content-Type
	if cw.Header().Get("Content-Type") == "" {
		cw.Header().Set("Content-Type", http.DetectContentType(b))
	}

	// 4. 寫入壓縮器
	return cw.w.Write(b)
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	cw.Header().Del("Content-Length")

	// 動態偵測是否應該取消壓縮 (204/304/1xx)
	if isNoBodyStatus(code) {
		cw.disabled = true
		cw.Header().Del("Content-Encoding")
		cw.Header().Del("Vary")
	}

	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressResponseWriter) Flush() {
	// 只有在啟用壓縮時，才 Flush 壓縮器
	if !cw.disabled {
		if f, ok := cw.w.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	// 永遠 Flush 底層
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

func (cw *compressResponseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := cw.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return errors.New("underlying response writer does not support Pusher")
}

// --- Middleware 入口 ---

func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// [Guard 1] WebSocket / Head
		if r.Method == http.MethodHead || isWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		// [Guard 2] 避免二次壓縮
		if w.Header().Get("Content-Encoding") != "" {
			next.ServeHTTP(w, r)
			return
		}

		sc := negotiate(r.Header.Get("Accept-Encoding"))
		if sc == nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", sc.name)
		w.Header().Add("Vary", "Accept-Encoding")

		enc := sc.get(w)
		cw := &compressResponseWriter{ResponseWriter: w, w: enc}
		// 如果 response 被標記為 disabled（204/304），把 Writer 重設到
		// io.Discard 再 Close，encoder 收尾產生的 Footer 就不會污染回應。
		defer func() {
			if cw.disabled {
				enc.Reset(io.Discard)
			}
			sc.put(enc)
		}()

		next.ServeHTTP(cw, r)
	})
}
