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

package main

import (
	"fmt"
	"os"
)

func main() {
	exeCmd()
}

// task 一條可以用 `go run ./scripts <name>` 執行的開發任務
type task struct {
	name string
	desc string
	fn   func()
}

// tasks 依顯示順序排列；新任務往下加即可
var tasks = []task{
	{"test", "run all tests, print only ok/FAIL lines", runTest},
	{"test-all", "run all tests with coverage", runTestAll},
	{"test-detail", "verbose tests, hide [no test files]", runTestDetail},
	{"verify", "quick convergence check on the demo engine", runVerify},
	{"bank", "design the athena matrix bank into ./testdata/bank", runBank},
	{"svr", "start the demo api server (cmd/svr)", runSvr},
	{"dev", "start the dev panel (cmd/dev)", runDevPanelTask},
}

func exeCmd() {
	// 沒帶 task 就把可用任務列出來
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	selectTask(os.Args[1]) // 路由執行
}

func selectTask(name string) {
	for _, t := range tasks {
		if t.name == name {
			t.fn()
			return
		}
	}
	PrintYellow(fmt.Sprintf("Unknown task: %s\n", name))
	usage()
	os.Exit(1)
}

func usage() {
	PrintBlue("Usage: go run ./scripts <task>")
	for _, t := range tasks {
		PrintDefault(fmt.Sprintf("  %-12s %s", t.name, t.desc))
	}
}
