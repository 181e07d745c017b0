// Package demo_configs 內嵌示範引擎設定，供 demo、cmd/svr、cmd/run
// 直接掛進 catalog 使用。
//
// 目前收錄兩座引擎：
//   - athena.yaml (eid 1001)：fp64 + pcg64，8x64 的大引擎，fixed 區塊內嵌矩陣設計圖
//   - hermes.yaml (eid 1002)：fp32 + pcg32，4x32 的輕量引擎，煙霧測試用
package demo_configs

import (
	"embed"
)

// FS 收錄本目錄所有 *.yaml；檔名即 catalog 的 config name，目錄必須保持扁平。
//
//go:embed *.yaml
var FS embed.FS
