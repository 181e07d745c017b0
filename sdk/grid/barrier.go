package grid

import "sync"

// Barrier 為可重複使用的 block 內同步屏障 (cyclic barrier)。
//
// 每一代 (generation) 的最後一個抵達者會先換上新的 gate 再釋放舊的，
// 因此同一個 Barrier 可以被同一組 lane 連續重用，不需重建。
//
// 記憶體順序保證：任一 lane 在 Wait 之前完成的寫入，
// 對所有在同一次 Wait 之後繼續執行的 lane 可見
// （mutex 段落 happens-before close(gate)，close 又 happens-before 接收）。
type Barrier struct {
	mu    sync.Mutex
	n     int
	count int
	gate  chan struct{}
}

// NewBarrier 建立容量為 n 的屏障；n 必須 >= 1。
func NewBarrier(n int) *Barrier {
	if n < 1 {
		panic("grid: barrier size must be >= 1")
	}
	return &Barrier{n: n, gate: make(chan struct{})}
}

// Wait 阻塞直到同一代的 n 個 lane 全部抵達。
//
// 合約：同一 block 的每個 lane 對 Wait 的呼叫次數與順序必須一致
// （uniform control flow）；少一個呼叫就是整個 block 死鎖。
func (b *Barrier) Wait() {
	b.mu.Lock()
	gate := b.gate
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gate = make(chan struct{})
		close(gate)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	<-gate
}
