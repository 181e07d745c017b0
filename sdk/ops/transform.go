package ops

// Fill 將切片內所有元素設為 v
//
//   - w: 權重數據 (將被原地修改)
func Fill(w []float64, v float64) {
	for i := range w {
		w[i] = v
	}
}

// Scale 將切片內所有元素乘上 k
//
//   - w: 權重數據 (將被原地修改)
func Scale(w []float64, k float64) {
	for i := range w {
		w[i] *= k
	}
}

// Blend 以比例 p 線性混合兩列權重：dst = lo + p*(hi-lo)
//
// p=0 時 dst 等於 lo，p=1 時等於 hi。dst 可與 hi 或 lo 為同一塊切片。
//
//   - dst: 輸出位置 (原地修改)
//   - hi, lo: 參與混合的兩列，長度需與 dst 相同
func Blend(dst, hi, lo []float64, p float64) {
	for i := range dst {
		dst[i] = lo[i] + p*(hi[i]-lo[i])
	}
}

// Sum 回傳切片內所有元素的總和
func Sum(w []float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}
