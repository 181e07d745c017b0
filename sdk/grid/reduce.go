package grid

// ReduceAdd 將每個 lane 的純量 v 加總成單一總和，並回傳給「所有」lane。
//
//   - buf 為該 block 的 shared memory，長度至少 g.Lanes()；內容會被覆寫。
//   - 所有 lane 必須一起呼叫（內含屏障），且傳入同一個 buf。
//
// 樹狀折半累加，對非 2 的冪的 lane 數同樣正確：
// 每一輪把寬度 width 折半，前 width/2 個 lane 吸收上半部的值。
func ReduceAdd[F Floaters](g *Group, lane int, buf []F, v F) F {
	buf[lane] = v
	g.Sync()

	for width := g.Lanes(); width > 1; {
		half := (width + 1) / 2
		if lane < width/2 {
			buf[lane] += buf[lane+half]
		}
		g.Sync()
		width = half
	}
	return buf[0]
}
