package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// cleanTestCache 對應原本 Makefile 的 @go clean -testcache。
// fatal=false 時 clean 失敗只提示不中斷（單純跑測試不值得被 cache 擋下）。
func cleanTestCache(fatal bool) {
	cmd := exec.Command("go", "clean", "-testcache")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if fatal {
			PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
			os.Exit(1)
		}
		PrintYellow(err.Error())
	}
}

// runTest 跑全套測試，只印 ok/FAIL 摘要行。
// 對應原本 Makefile 的:
//
//	go clean -testcache
//	go test ./... -cover -count=1 2>&1 | grep -E '^(ok|FAIL)'
func runTest() {
	PrintGreen("running tests")
	cleanTestCache(false)
	filterGoTest([]string{"test", "./...", "-cover", "-count=1"}, func(line string) {
		switch {
		case strings.HasPrefix(line, "ok"):
			PrintGreen(line)
		case strings.HasPrefix(line, "FAIL"):
			PrintRed(line)
		case strings.Contains(line, "build failed"), strings.Contains(line, "setup failed"):
			// grep 過濾太乾淨會看不出為什麼沒反應，嚴重錯誤關鍵字保留
			PrintRed(line)
		}
	}, "Tests finished with errors")
}

// runTestAll 對應 Makefile 的 test-all：全部套件 + 覆蓋率，輸出不過濾。
func runTestAll() {
	PrintGreen("running tests (all with coverage)")
	cleanTestCache(true)

	cmd := exec.Command("go", "test", "./...", "-cover")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		PrintRed("\nTests (with coverage) finished with errors\n")
		os.Exit(1)
	}
}

// runTestDetail 對應 Makefile 的 test-detail：verbose 測試，
// 過濾掉 "[no test files]"，ok/FAIL 上色，其餘照印。
func runTestDetail() {
	PrintGreen("running tests (detail)")
	cleanTestCache(true)
	filterGoTest([]string{"test", "./...", "-v", "-count=1"}, func(line string) {
		if strings.Contains(line, "[no test files]") {
			return
		}
		switch {
		case strings.HasPrefix(line, "ok"):
			PrintGreen(line)
		case strings.HasPrefix(line, "FAIL"):
			PrintRed(line)
		default:
			fmt.Println(line)
		}
	}, "Tests (detail) finished with errors")
}

// filterGoTest 啟動 go 子指令，stdout+stderr 合流後逐行交給 sink，
// 模擬 shell 的 `2>&1 | grep ...`；exit code != 0 時以 failMsg 結束行程。
func filterGoTest(args []string, sink func(string), failMsg string) {
	cmd := exec.Command("go", args...)

	// 取 stdout 的 pipe，像 grep 一樣一行行讀
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		PrintRed(fmt.Sprintf("failed to get stdout pipe: %v", err))
		os.Exit(1)
	}
	// 對應 shell 的 "2>&1"：編譯錯誤（通常在 stderr）也要能讀到
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		PrintRed(fmt.Sprintf("Error starting go test: %v", err))
		os.Exit(1)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		sink(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// IO 問題；照常等 exit code
		PrintRed(fmt.Sprintf("scanner error: %v", err))
	}

	if err := cmd.Wait(); err != nil {
		PrintRed("\n" + failMsg + "\n")
		os.Exit(1)
	}
}
