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

package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/buf"
	"github.com/zintix-labs/gridlab/spec"
)

type SampleRequest struct {
	UID         string    `json:"uid"`               // 唯一識別碼
	EngineName  string    `json:"engine"`            // 目標引擎名稱
	EngineID    spec.EID  `json:"eid"`               // 引擎編號
	Rows        int       `json:"rows"`              // 分佈列數
	Cols        int       `json:"cols"`              // 每列類別數
	Samples     int       `json:"samples,omitempty"` // 每列樣本數（缺省走引擎 default_samples）
	Replacement *bool     `json:"replacement,omitempty"`
	// Contract（避免空請求的雙重語意）：
	//   - weights 與 preset 恰好提供其中一個；兩者都給或都缺視為 request 格式錯誤。
	//   - weights 為 row-major 攤平矩陣，長度必須等於 rows*cols。
	Weights    []float64   `json:"weights,omitempty"` // 攤平權重矩陣
	Preset     string      `json:"preset,omitempty"`  // 指名 bank 內的預設矩陣
	StartState *StartState `json:"start_state,omitempty"` // 可選：帶入引擎狀態（nil=新局；帶 start_b64u=回放/續抽）。
}

// StartState 是由業務端帶入的「引擎可恢復狀態」（可選）。
//
// 設計目標：
//   - 讓引擎維持純計算器（stateless / deterministic），「可回放/可續抽」所需的狀態由業務端保存與回送。
//   - 新局：start_state 缺省即可；引擎會自行起始 StateArray 並在回應中回傳 Start/After。
//   - 回放（Replay）：帶入當初記錄的 start_b64u，可在相同輸入條件下重現該次取樣。
//   - 續抽（Resume）：把上一次回應的 after_b64u 當作下一次的 start_b64u，以延續亂數流水。
//
// 重要約束：
//   - Request 只允許提供 Start（start_b64u）；After（after_b64u）只會由引擎在 Response 回傳。
//   - 快照只對「相同 launch 形狀與 generator」的引擎有效，跨引擎回送會在 restore 時被拒絕。
type StartState struct {
	// StartStateB64U：StateArray 的「起始快照」Base64URL（URL-safe base64）字串。
	//   - 缺省：視為新局（引擎自行起始亂數狀態）。
	//   - 有值：視為回放/續抽（引擎從該快照 restore）。
	StartStateB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	if ss == nil {
		return false
	}
	return ss.StartStateB64U != ""
}

// DecodeSampleRequest 會把 HTTP 請求解碼成 SampleRequest。
//
// 支援：
//   - GET：從 query string 讀取參數（uid/engine/eid/rows/cols/samples/replacement/weights/preset）。
//     weights 以逗號分隔（例如 weights=1,2,3,4）。GET 建議僅用於簡單測試；
//     巢狀狀態（start_state）請使用 POST。
//   - POST：從 JSON body 反序列化（支援 start_state）。
//
// 注意：
//   - 這裡只負責「解碼（decode）」與基本型別轉換，不做任何引擎合法性校驗；
//     合法性（例如該 EID 是否存在、形狀是否超限、權重是否非負）應由上層（Device/Runtime）決定。
//   - 為避免過大 body 影響服務，POST 會對 body 做大小限制（預設 8MiB，權重矩陣比一般請求大）。
//   - POST 會開啟 DisallowUnknownFields()，對未知欄位採用嚴格拒絕，以避免靜默丟資料。
func DecodeSampleRequest(r *http.Request) (*SampleRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(SampleRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.EngineName = q.Get("engine")
		req.Preset = q.Get("preset")

		if s := q.Get("eid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid eid: %v", err))
			}
			req.EngineID = spec.EID(u)
		}

		if s := q.Get("rows"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid rows: %v", err))
			}
			req.Rows = v
		}

		if s := q.Get("cols"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid cols: %v", err))
			}
			req.Cols = v
		}

		if s := q.Get("samples"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid samples: %v", err))
			}
			req.Samples = v
		}

		if s := q.Get("replacement"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, errs.NewWarn("invalid replacement value " + err.Error())
			}
			req.Replacement = &v
		}

		if s := q.Get("weights"); s != "" {
			parts := strings.Split(s, ",")
			req.Weights = make([]float64, len(parts))
			for i, p := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return nil, errs.NewWarn(fmt.Sprintf("invalid weights[%d]: %v", i, err))
				}
				req.Weights[i] = v
			}
		}

		return req, nil

	case http.MethodPost:
		// 防止 body 過大（預設 8MiB）
		const maxBody = 8 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}

// Parse 把 wire 請求轉成引擎內部請求，並檢查格式層級的自洽性。
//
// 這裡只做「請求自己不能自相矛盾」的檢查；涉及引擎狀態的合法性
// （EID 存在與否、形狀上限、權重非負）由 Device 邊界把關。
func (sr *SampleRequest) Parse() (*buf.SampleRequest, error) {
	hasWeights := len(sr.Weights) != 0
	hasPreset := sr.Preset != ""
	if hasWeights == hasPreset {
		return nil, errs.NewWarn("exactly one of weights and preset is required")
	}
	if hasWeights && sr.Rows*sr.Cols != len(sr.Weights) {
		return nil, errs.Warnf("weights length %d does not match rows*cols = %d*%d", len(sr.Weights), sr.Rows, sr.Cols)
	}

	var state *buf.StartState
	if sr.StartState.HasPayload() {
		snap, err := corefmt.DecodeBase64URL(sr.StartState.StartStateB64U)
		if err != nil {
			return nil, errs.NewWarn("state snap decode failed " + err.Error())
		}
		state = &buf.StartState{StartStateSnap: snap}
	}

	replacement := true
	if sr.Replacement != nil {
		replacement = *sr.Replacement
	}

	req := &buf.SampleRequest{
		UID:         sr.UID,
		EngineName:  sr.EngineName,
		EngineID:    sr.EngineID,
		Rows:        sr.Rows,
		Cols:        sr.Cols,
		Samples:     sr.Samples,
		Replacement: replacement,
		Preset:      sr.Preset,
		Weights:     sr.Weights,
		StartState:  state,
	}
	return req, nil
}

// FillRequest 是對數常態填充的 wire 請求。
type FillRequest struct {
	UID        string      `json:"uid"`
	EngineName string      `json:"engine"`
	EngineID   spec.EID    `json:"eid"`
	Count      int         `json:"count"`
	Mean       float64     `json:"mean"`
	Stddev     float64     `json:"stddev"`
	StartState *StartState `json:"start_state,omitempty"`
}

// DecodeFillRequest 會把 HTTP 請求解碼成 FillRequest。
// 支援的參數與解碼規則同 DecodeSampleRequest（GET query / POST JSON）。
func DecodeFillRequest(r *http.Request) (*FillRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(FillRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.EngineName = q.Get("engine")

		if s := q.Get("eid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid eid: %v", err))
			}
			req.EngineID = spec.EID(u)
		}

		if s := q.Get("count"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid count: %v", err))
			}
			req.Count = v
		}

		if s := q.Get("mean"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid mean: %v", err))
			}
			req.Mean = v
		}

		if s := q.Get("stddev"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid stddev: %v", err))
			}
			req.Stddev = v
		}

		return req, nil

	case http.MethodPost:
		const maxBody = 1 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}

// StartSnap 解碼 FillRequest 內的起始快照；沒有快照時回傳 nil。
func (fr *FillRequest) StartSnap() ([]byte, error) {
	if !fr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(fr.StartState.StartStateB64U)
	if err != nil {
		return nil, errs.NewWarn("state snap decode failed " + err.Error())
	}
	return snap, nil
}
