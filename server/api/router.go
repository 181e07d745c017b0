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

package api

import (
	"log/slog"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/server/api/dev"
	"github.com/zintix-labs/gridlab/server/api/index"
	v1 "github.com/zintix-labs/gridlab/server/api/v1"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/netsvr/middleware"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

// RegisterRoutes 註冊 middleware 與全部路由。
// 回傳 v1 API 內部建立的 EngineRuntime，呼叫端應把它的 Close 掛進
// 自己的關閉流程（server.Run 會登記到 app.OnShutdown）。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) (*gridlab.EngineRuntime, error) {
	registerMiddleware(svr, sCfg.Log) // 1. 註冊 middleware
	registerIndex(svr)                // 2. 註冊主頁
	if sCfg.Mode == svrcfg.ModeDev {
		dev.Register(svr, sCfg) // 3. 開發者工具頁（僅 dev 模式）
	}
	return registerV1API(svr, sCfg) // 4. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Compression)
}

// 註冊主頁
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", index.IndexHandlerFn)
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) (*gridlab.EngineRuntime, error) {
	r, err := v1.NewSampleHandler(sCfg)
	if err != nil {
		return nil, err
	}
	s, err := v1.NewVerifyHandler(sCfg.Gridlab)
	if err != nil {
		return nil, err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/sample", r.Sample)
		vOne.Get("/lognormal", r.Fill)
		vOne.Get("/verify", s.Verify)
		vOne.Get("/lognormalfit", s.LogNormal)
		vOne.Get("/presets", v1.Presets(sCfg.Gridlab))
		vOne.Get("/metrics", r.Metrics)

		vOne.Post("/sample", r.Sample)
		vOne.Post("/lognormal", r.Fill)
		vOne.Post("/verify", s.Verify)
		vOne.Post("/lognormalfit", s.LogNormal)
		vOne.Post("/verifybycfg", s.VerifyByCfg)
		vOne.Post("/stat", v1.Stat)
	})
	return r.Runtime(), nil
}
