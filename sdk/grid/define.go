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

// Package grid 提供 block/lane 式的協同執行模型 (cooperative execution model)。
//
// 模型對齊加速器 (accelerator) 的執行慣例：
//   - 一次 Launch 產生固定數量的 block，每個 block 內有固定數量的 lane。
//   - block 之間完全獨立，沒有任何跨 block 同步；每個 block 只處理自己
//     被指派的資料分片 (依 grid-stride 輪轉)。
//   - block 內的 lane 透過 Barrier 同步；shared memory 就是 kernel 閉包內
//     配置、被所有 lane 共享的 slice。
//
// 本檔案 (define.go) 定義 grid 與上層 kernel 套件共用的泛型約束。
package grid

// Integers 定義所有底層實現為整數型別的集合
type Integers interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Floaters 定義所有底層實現為浮點數型別的集合
type Floaters interface {
	~float32 | ~float64
}

// Numbers 定義所有底層實現為數值型別的集合（整數與浮點數）
type Numbers interface {
	Integers | Floaters
}

// CeilDiv 回傳 a/b 向上取整的結果。
//
// kernel 以此計算「要覆蓋 a 個元素、每批 b 個需要幾批」，
// 例如 chunk 數量與 grid-stride 的回合數。
func CeilDiv[T Integers](a, b T) T {
	return (a + b - 1) / b
}
