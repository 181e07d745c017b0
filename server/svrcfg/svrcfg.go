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

package svrcfg

import (
	"log/slog"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/logger"
)

// Mode 決定 server 對外暴露的路由範圍。
// ModeDev 會額外掛載 /dev 系列（面板、回放、快照工具）；ModeProd 只有 /v1。
type Mode uint8

const (
	ModeProd Mode = iota
	ModeDev
)

type SvrCfg struct {
	Log           *slog.Logger
	DeviceBufSize int
	Gridlab       *gridlab.Gridlab
	Mode          Mode
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}

	// 1 <= sc.DeviceBufSize <= 10
	// for 資源管理
	sc.DeviceBufSize = max(1, sc.DeviceBufSize)
	sc.DeviceBufSize = min(10, sc.DeviceBufSize)
	if sc.Gridlab == nil {
		return errs.NewFatal("gridlab is required")
	}
	return nil
}
