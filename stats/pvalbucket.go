package stats

import "math"

const pvalLutScale int = 10000

// PValBuckets
//
// 用來快速定位 p-value -> 分帶位置 O(1)
//
// 請勿修改預設值
//   - p-value 分帶: [0,0.001), [0.001,0.01), [0.01,0.05), [0.05,0.1), [0.1,0.25), [0.25,0.5), [0.5,0.75), [0.75,0.9), [0.9,1]
type PValBuckets struct {
	pvalBucket    []float64
	pvalBucketStr []string
	pvalLUT       []int
	maxIdx        int
}

// Buckets
//
// 用來快速定位 p-value -> 分帶位置 O(1)
//
// 請勿修改預設值
var Buckets *PValBuckets = newPValBuckets()

func newPValBuckets() *PValBuckets {
	b := &PValBuckets{
		pvalBucket:    []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9},
		pvalBucketStr: []string{"[0,0.001)", "[0.001,0.01)", "[0.01,0.05)", "[0.05,0.1)", "[0.1,0.25)", "[0.25,0.5)", "[0.5,0.75)", "[0.75,0.9)", "[0.9,1]"},
	}
	b.buildLUT()
	return b
}

func (b *PValBuckets) BucketStr() []string {
	return b.pvalBucketStr
}

func (b *PValBuckets) buildLUT() {
	// 把機率邊界轉成 1/10000 整數刻度再建表，避免浮點比較
	edges := make([]int, len(b.pvalBucket))
	for i, v := range b.pvalBucket {
		edges[i] = int(math.Round(v * float64(pvalLutScale)))
	}

	lut := make([]int, pvalLutScale+1) // lut[scaled p] = idx

	idx := 0
	last := len(edges)
	for i := 0; i <= pvalLutScale; i++ {
		// 僅在還有更高邊界時才前進 idx，避免越界讀取
		for idx < last && i >= edges[idx] {
			idx++
		}
		lut[i] = idx
	}

	b.pvalLUT = lut
	b.maxIdx = len(b.pvalBucketStr) - 1
}

func (b *PValBuckets) Index(p float64) int {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return b.maxIdx
	}
	return b.pvalLUT[int(p*float64(pvalLutScale))]
}
