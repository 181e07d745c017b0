package main

import (
	"os"
	"os/exec"
)

// 這裡收錄「跑起來看看」類的任務：把常用的 cmd/* 入口包成一條指令，
// 新人不用先翻參數說明。

// runVerify 用 demo 引擎 athena 跑一輪快速收斂驗證。
// 參數刻意保守（16x16、20 萬輪），筆電上一分鐘內可以跑完；
// 要壓測請直接呼叫 cmd/run 自訂參數。
func runVerify() {
	PrintGreen("verify: athena (eid 1001) ramp 16x16, 200k rounds")
	runGo("run", "./cmd/run", "-engine", "1001", "-rows", "16", "-cols", "16", "-rounds", "200000")
}

// runBank 用 athena 的 fixed 設計圖生成矩陣庫與 4 個重啟快照。
// 固定 seed，重跑產物相同；輸出落在 ./testdata/bank。
func runBank() {
	PrintGreen("mkbank: athena (eid 1001) -> ./testdata/bank")
	runGo("run", "./cmd/mkbank", "-engine", "1001", "-states", "4", "-seed", "20251001", "-out", "testdata/bank")
}

// runSvr 啟動 demo API server（cmd/svr，預設 :5808）。
func runSvr() {
	PrintGreen("starting demo api server on :5808")
	runGo("run", "./cmd/svr")
}

// runDevPanelTask 啟動 dev 面板（cmd/dev 會自己開瀏覽器）。
func runDevPanelTask() {
	PrintGreen("starting dev panel")
	runGo("run", "./cmd/dev")
}

// runGo 以繼承的 stdio 執行 go 子指令；失敗時以非零值結束行程。
func runGo(args ...string) {
	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		PrintRed("task failed: " + err.Error())
		os.Exit(1)
	}
}
