package grid

// ScanAdd 對 buf 就地執行 inclusive prefix sum（Hillis-Steele 掃描）。
//
// 逐倍增 stride：每一輪 lane i 讀取 buf[i-stride]（若存在），
// 讀取與寫回之間以屏障隔開，再以屏障結束該輪，避免同輪讀寫競爭。
// 掃描結束時（含最後一道屏障）所有 lane 都能看見完整結果。
//
//   - buf 長度必須 <= g.Lanes()；若較短，超出範圍的 lane 只陪跑屏障，
//     不讀不寫。
//   - 所有 lane 必須一起呼叫，且傳入同一個 buf。
func ScanAdd[F Floaters](g *Group, lane int, buf []F) {
	n := len(buf)
	for stride := 1; stride < n; stride <<= 1 {
		var carry F
		take := lane < n && lane >= stride
		if take {
			carry = buf[lane-stride]
		}
		g.Sync()
		if take {
			buf[lane] += carry
		}
		g.Sync()
	}
}
