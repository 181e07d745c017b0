// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package perf

import (
	"os"
	"runtime"
	"runtime/pprof"
)

const pprofDir = "build/profiling" // pprof檔案寫入路徑

// RunPProf 根據 mode 決定以哪種 Profiling 包住 exe。
//
// 模式：
//   - ""       直接執行
//   - "cpu"    CPU profile（也可當 pgo 的 blueprint）
//   - "heap"   執行後拍一次 in-use heap snapshot
//   - "allocs" 累積配置 profile
//   - "block"  阻塞 profile；lane goroutine 大多睡在 barrier 的 channel 上，這裡看得最清楚
//   - "mutex"  互斥鎖競爭 profile；barrier 與 device pool 的鎖競爭走這裡
//
// Usage like:
//
//	go run ./cmd/run -p cpu
//	go run ./cmd/run -p block
func RunPProf(exe func(), mode string) {

	// 確保目錄存在
	_ = os.MkdirAll(pprofDir, 0o755)

	switch mode {
	case "":
		exe()
	case "cpu":
		PProfCPU(exe)
	case "heap":
		PProfHeap(exe)
	case "allocs":
		PProfAllocs(exe)
	case "block":
		PProfBlock(exe)
	case "mutex":
		PProfMutex(exe)
	default:
		exe()
	}
}

// PProfCPU 對送入的函數做 CPU profiling。
//
// 可以作性能分析，也可以拿來做構建時給pgo的優化blueprint。
// 輸出檔：build/profiling/cpu.pprof
func PProfCPU(exe func()) {

	// 確保目錄存在
	_ = os.MkdirAll(pprofDir, 0o755)

	f := mustCreate("cpu.pprof")
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		panic("failed to start pprof : " + err.Error())
	}
	defer pprof.StopCPUProfile()

	exe()
}

// PProfHeap 會在 exe() 執行完後，寫出一次 Heap Snapshot（in-use memory）。
// 注意：Heap Profile 與 CPU Profile 是不同的，CPU 檔不包含記憶體配置資訊。
// 通常在寫出 Heap Profile 前呼叫一次 runtime.GC()，以獲得較準確的 Live Objects 視圖。
// 輸出檔：build/profiling/heap.pprof
func PProfHeap(exe func()) {
	// 先執行目標邏輯，再拍一次快照
	exe()

	// 盡量讓快照貼近最新狀態
	runtime.GC()

	f := mustCreate("heap.pprof")
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		panic("failed to write heap profile : " + err.Error())
	}
}

// PProfAllocs 會在 exe() 後寫出「累積配置」(allocs) Profile，
// 可用於追蹤整體分配熱點（需要搭配 -alloc_space / -alloc_objects 指標查看）。
// 輸出檔：build/profiling/allocs.pprof
func PProfAllocs(exe func()) {
	exe()
	writeLookup("allocs", "allocs.pprof")
}

// PProfBlock 開啟阻塞取樣後執行 exe()，結束時寫出 block profile。
// 每次 launch 的 lane goroutine 在 barrier 間同步，阻塞熱點幾乎都集中
// 在 barrier 的 gate channel；這個 profile 用來確認 chunk 尺寸與
// blocks/lanes 形狀是否讓 lane 空等太久。
// 輸出檔：build/profiling/block.pprof
func PProfBlock(exe func()) {
	runtime.SetBlockProfileRate(1)
	defer runtime.SetBlockProfileRate(0)

	exe()
	writeLookup("block", "block.pprof")
}

// PProfMutex 開啟鎖競爭取樣後執行 exe()，結束時寫出 mutex profile。
// 觀察對象：barrier 內部的 mutex、device pool 的借還鎖。
// 輸出檔：build/profiling/mutex.pprof
func PProfMutex(exe func()) {
	runtime.SetMutexProfileFraction(1)
	defer runtime.SetMutexProfileFraction(0)

	exe()
	writeLookup("mutex", "mutex.pprof")
}

func mustCreate(name string) *os.File {
	_ = os.MkdirAll(pprofDir, 0o755)
	f, err := os.Create(pprofDir + "/" + name)
	if err != nil {
		panic("failed to create " + name + " : " + err.Error())
	}
	return f
}

func writeLookup(profile, filename string) {
	f := mustCreate(filename)
	defer f.Close()

	if prof := pprof.Lookup(profile); prof != nil {
		if err := prof.WriteTo(f, 0); err != nil {
			panic("failed to write " + profile + " profile : " + err.Error())
		}
	}
}
