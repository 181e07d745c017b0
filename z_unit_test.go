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

package gridlab

import (
	"bytes"
	"context"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/gridlab/bank"
	"github.com/zintix-labs/gridlab/dto"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/spec"
)

const (
	athenaID spec.EID = 1001
	hermesID spec.EID = 1002
)

// testConfigFS 提供兩座引擎設定：athena 無容量上限（收斂/回放測試用），
// hermes 帶容量上限且走 float32/pcg32 路徑。
func testConfigFS() fstest.MapFS {
	athena := "engine_name: athena\n" +
		"engine_id: 1001\n" +
		"blocks: 4\n" +
		"lanes: 8\n" +
		"precision: float64\n" +
		"generator: pcg64\n"
	hermes := "engine_name: hermes\n" +
		"engine_id: 1002\n" +
		"blocks: 2\n" +
		"lanes: 4\n" +
		"precision: float32\n" +
		"generator: pcg32\n" +
		"max_categories: 16\n" +
		"max_rows: 8\n" +
		"max_samples: 32\n"
	return fstest.MapFS{
		"athena.yaml": &fstest.MapFile{Data: []byte(athena)},
		"hermes.yaml": &fstest.MapFile{Data: []byte(hermes)},
	}
}

func newTestLab(t *testing.T) *Gridlab {
	t.Helper()
	lab, err := NewAuto(nil, Configs(testConfigFS()), nil)
	if err != nil {
		t.Fatalf("NewAuto err: %v", err)
	}
	return lab
}

func newReq(name string, id spec.EID, rows, cols, samples int, replacement bool, weights []float64) *dto.SampleRequest {
	return &dto.SampleRequest{
		EngineName:  name,
		EngineID:    id,
		Rows:        rows,
		Cols:        cols,
		Samples:     samples,
		Replacement: &replacement,
		Weights:     weights,
	}
}

func athenaReq(rows, cols, samples int, replacement bool, weights []float64) *dto.SampleRequest {
	return newReq("athena", athenaID, rows, cols, samples, replacement, weights)
}

func mustSample(t *testing.T, d *Device, req *dto.SampleRequest) dto.SampleResult {
	t.Helper()
	res, err := d.Sample(req)
	if err != nil {
		t.Fatalf("sample err: %v", err)
	}
	return res
}

// ----- Tests for Gridlab assembly -----

func TestRegisterAllAndSummary(t *testing.T) {
	lab := newTestLab(t)
	sum, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary err: %v", err)
	}
	if len(sum) != 2 {
		t.Fatalf("want 2 engines, got %d", len(sum))
	}
	for _, s := range sum {
		switch s.EID {
		case athenaID:
			if s.Name != "athena" || s.Blocks != 4 || s.Lanes != 8 {
				t.Fatalf("athena summary mismatch: %+v", s)
			}
			if s.Precision != spec.PrecisionFloat64 || s.Generator != spec.GeneratorPCG64 {
				t.Fatalf("athena stack mismatch: %+v", s)
			}
		case hermesID:
			if s.Name != "hermes" || s.Blocks != 2 || s.Lanes != 4 {
				t.Fatalf("hermes summary mismatch: %+v", s)
			}
			if s.Precision != spec.PrecisionFloat32 || s.Generator != spec.GeneratorPCG32 {
				t.Fatalf("hermes stack mismatch: %+v", s)
			}
		default:
			t.Fatalf("unexpected engine id %d", s.EID)
		}
	}

	ent, ok := lab.EntryById(hermesID)
	if !ok || ent.Name != "hermes" || ent.ConfigName != "hermes.yaml" {
		t.Fatalf("EntryById mismatch: %+v", ent)
	}
	// 目錄查名大小寫不敏感
	ent2, ok := lab.EntryByName("ATHENA")
	if !ok || ent2.EID != athenaID {
		t.Fatalf("EntryByName should normalize case: %+v", ent2)
	}
	if len(lab.IDs()) != 2 || len(lab.All()) != 2 {
		t.Fatalf("catalog enumeration mismatch")
	}

	es, err := lab.SettingById(athenaID)
	if err != nil {
		t.Fatalf("SettingById err: %v", err)
	}
	if es.EngineName != "athena" || es.Blocks != 4 || es.Lanes != 8 {
		t.Fatalf("SettingById mismatch: %+v", es)
	}
	if _, err := lab.SettingById(spec.EID(9999)); err == nil {
		t.Fatal("SettingById should reject unknown id")
	}
}

func TestRegisterAllRejections(t *testing.T) {
	// 重複 engine_id
	dupID := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: []byte("engine_name: alpha\nengine_id: 7\nblocks: 1\nlanes: 1\n")},
		"b.yaml": &fstest.MapFile{Data: []byte("engine_name: beta\nengine_id: 7\nblocks: 1\nlanes: 1\n")},
	}
	if _, err := NewAuto(nil, Configs(dupID), nil); err == nil || !strings.Contains(err.Error(), "duplicate engine id") {
		t.Fatalf("want duplicate engine id err, got %v", err)
	}

	// 重複 engine_name（大小寫視為同名）
	dupName := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: []byte("engine_name: alpha\nengine_id: 7\nblocks: 1\nlanes: 1\n")},
		"b.yaml": &fstest.MapFile{Data: []byte("engine_name: Alpha\nengine_id: 8\nblocks: 1\nlanes: 1\n")},
	}
	if _, err := NewAuto(nil, Configs(dupName), nil); err == nil || !strings.Contains(err.Error(), "duplicate engine name") {
		t.Fatalf("want duplicate engine name err, got %v", err)
	}

	// 設定檔目錄必須是平面的
	nested := fstest.MapFS{
		"sub/c.yaml": &fstest.MapFile{Data: []byte("engine_name: c\nengine_id: 9\nblocks: 1\nlanes: 1\n")},
	}
	if _, err := NewAuto(nil, Configs(nested), nil); err == nil || !strings.Contains(err.Error(), "must be flat") {
		t.Fatalf("want flat config err, got %v", err)
	}

	// 沒有任何設定檔
	if _, err := NewAuto(nil, Configs(fstest.MapFS{}), nil); err == nil || !strings.Contains(err.Error(), "no config files") {
		t.Fatalf("want no config files err, got %v", err)
	}
	if _, err := New(nil, nil, nil); err == nil || !strings.Contains(err.Error(), "configs required") {
		t.Fatalf("want configs required err, got %v", err)
	}
}

func TestFreezeGate(t *testing.T) {
	lab, err := New(nil, Configs(testConfigFS()), nil)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if err := lab.RegisterAll(); err != nil {
		t.Fatalf("RegisterAll err: %v", err)
	}
	if _, err := lab.Summary(); err == nil || !strings.Contains(err.Error(), "not frozen") {
		t.Fatalf("summary should require freeze, got %v", err)
	}
	if _, err := lab.NewDevice(athenaID); err == nil || !strings.Contains(err.Error(), "not frozen") {
		t.Fatalf("NewDevice should require freeze, got %v", err)
	}
	if _, err := lab.SettingById(athenaID); err == nil || !strings.Contains(err.Error(), "not frozen") {
		t.Fatalf("SettingById should require freeze, got %v", err)
	}
	lab.Freeze()
	if _, err := lab.Summary(); err != nil {
		t.Fatalf("summary after freeze err: %v", err)
	}
	if _, err := lab.NewDeviceWithSeed(athenaID, 1); err != nil {
		t.Fatalf("NewDeviceWithSeed after freeze err: %v", err)
	}
}

// ----- Tests for Device.Sample -----

// TestSampleDeterminism 驗證同設定同 seed 的兩座裝置產出一致結果，
// 且連續取樣時下一次的起點快照等於上一次的結束快照。
func TestSampleDeterminism(t *testing.T) {
	lab := newTestLab(t)
	d1, err := lab.NewDeviceWithSeed(athenaID, 42)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	d2, err := lab.NewDeviceWithSeed(athenaID, 42)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}

	w := []float64{1, 2, 3, 4, 4, 3, 2, 1}
	req := athenaReq(2, 4, 3, true, w)
	r1 := mustSample(t, d1, req)
	r2 := mustSample(t, d2, req)

	if !reflect.DeepEqual(r1.Categories, r2.Categories) {
		t.Fatalf("same seed produced different categories")
	}
	if r1.State != r2.State {
		t.Fatalf("same seed produced different snapshots")
	}
	if r1.EngineName != "athena" || r1.EngineID != athenaID {
		t.Fatalf("identity echo mismatch: %+v", r1)
	}
	if r1.Rows != 2 || r1.Cols != 4 || r1.Samples != 3 || !r1.Replacement {
		t.Fatalf("shape echo mismatch: %+v", r1)
	}
	for _, row := range r1.Categories {
		if len(row) != 3 {
			t.Fatalf("row length %d, want 3", len(row))
		}
		for _, c := range row {
			if c < 1 || c > 4 {
				t.Fatalf("category out of range: %d", c)
			}
		}
	}

	// 亂數流水帳：第二次取樣的起點必須接在第一次的結束之後
	r3 := mustSample(t, d1, req)
	if r3.State.StartStateB64U != r1.State.AfterStateB64U {
		t.Fatalf("stream did not continue from the after snapshot")
	}
}

func TestSampleIdentityCheck(t *testing.T) {
	lab := newTestLab(t)
	d, err := lab.NewDeviceWithSeed(athenaID, 1)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}

	wrongID := newReq("athena", 9999, 1, 2, 1, true, []float64{1, 1})
	if _, err := d.Sample(wrongID); err == nil || !strings.Contains(err.Error(), "engine id is not matched") {
		t.Fatalf("want engine id mismatch, got %v", err)
	}
	wrongName := newReq("hermes", athenaID, 1, 2, 1, true, []float64{1, 1})
	if _, err := d.Sample(wrongName); err == nil || !strings.Contains(err.Error(), "engine name is not matched") {
		t.Fatalf("want engine name mismatch, got %v", err)
	}
}

// TestSampleValidation 驗證取樣請求的邊界檢查
//
// 檢查項目:
//  1. 請求自相矛盾（weights/preset 併用、長度不符）要被拒絕
//  2. 樣本數、不放回式超抽、權重域都在發射 kernel 前擋下
//  3. 引擎容量上限（rows/cols/samples）逐項生效
//  4. 所有拒絕都是 Warn 等級（呼叫端可重試修正）
func TestSampleValidation(t *testing.T) {
	lab := newTestLab(t)
	devs := map[spec.EID]*Device{}
	for _, id := range []spec.EID{athenaID, hermesID} {
		d, err := lab.NewDeviceWithSeed(id, 5)
		if err != nil {
			t.Fatalf("new device err: %v", err)
		}
		devs[id] = d
	}

	both := athenaReq(1, 2, 1, true, []float64{1, 1})
	both.Preset = "grand"

	cases := []struct {
		name string
		req  *dto.SampleRequest
		want string
	}{
		{"weights and preset", both, "exactly one of weights and preset"},
		{"weights length", athenaReq(2, 2, 1, true, []float64{1, 1, 1}), "does not match rows*cols"},
		{"negative samples", athenaReq(1, 2, -1, true, []float64{1, 1}), "samples must > 0"},
		{"no-replace overdraw", athenaReq(1, 3, 4, false, []float64{1, 1, 1}), "cannot draw 4 samples without replacement from 3 categories"},
		{"negative weight", athenaReq(1, 2, 1, true, []float64{1, -1}), "must be finite and non-negative"},
		{"nan weight", athenaReq(1, 2, 1, true, []float64{1, math.NaN()}), "must be finite and non-negative"},
		{"rows over limit", newReq("hermes", hermesID, 9, 2, 1, true, make([]float64, 18)), "rows 9 exceeds engine limit 8"},
		{"cols over limit", newReq("hermes", hermesID, 1, 17, 1, true, make([]float64, 17)), "cols 17 exceeds engine limit 16"},
		{"samples over limit", newReq("hermes", hermesID, 1, 2, 33, true, []float64{1, 1}), "samples 33 exceeds engine limit 32"},
	}
	for _, tc := range cases {
		_, err := devs[tc.req.EngineID].Sample(tc.req)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("[%s] want %q, got %v", tc.name, tc.want, err)
		}
		if !errs.IsWarn(err) {
			t.Fatalf("[%s] want Warn level, got %v", tc.name, err)
		}
	}

	// 超限的 rows 請求不能汙染裝置：修正後要能正常取樣
	if _, err := devs[hermesID].Sample(newReq("hermes", hermesID, 2, 2, 1, true, []float64{1, 1, 1, 1})); err != nil {
		t.Fatalf("valid request after rejections err: %v", err)
	}
}

// TestSampleZeroMassRow 驗證全零權重列固定落在類別 1（三條發射路徑都要成立）
func TestSampleZeroMassRow(t *testing.T) {
	lab := newTestLab(t)
	d, err := lab.NewDeviceWithSeed(athenaID, 17)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	w := []float64{0, 0, 0, 1, 2, 3}

	// 放回式多樣本
	res := mustSample(t, d, athenaReq(2, 3, 4, true, w))
	for _, c := range res.Categories[0] {
		if c != 1 {
			t.Fatalf("zero-mass row drew %d, want 1", c)
		}
	}
	for _, c := range res.Categories[1] {
		if c < 1 || c > 3 {
			t.Fatalf("category out of range: %d", c)
		}
	}

	// 單樣本
	one := mustSample(t, d, athenaReq(2, 3, 1, true, w))
	if one.Categories[0][0] != 1 {
		t.Fatalf("zero-mass row drew %d on single-sample path", one.Categories[0][0])
	}

	// 不放回式
	nr := mustSample(t, d, athenaReq(2, 3, 2, false, w))
	for _, c := range nr.Categories[0] {
		if c != 1 {
			t.Fatalf("zero-mass row drew %d on no-replace path", c)
		}
	}
	if nr.Categories[1][0] == nr.Categories[1][1] {
		t.Fatalf("no-replace drew the same category twice: %v", nr.Categories[1])
	}
}

func TestSampleNoReplacePermutation(t *testing.T) {
	lab := newTestLab(t)
	d, err := lab.NewDeviceWithSeed(athenaID, 23)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	w := make([]float64, 3*5)
	for i := range w {
		w[i] = float64(i%5) + 1
	}
	res := mustSample(t, d, athenaReq(3, 5, 5, false, w))
	want := []int{1, 2, 3, 4, 5}
	for r, row := range res.Categories {
		got := slices.Clone(row)
		slices.Sort(got)
		if !slices.Equal(got, want) {
			t.Fatalf("row %d is not a permutation: %v", r, row)
		}
	}
}

// TestSampleReplayAndResume 驗證快照回放/續抽合約
//
// 檢查項目:
//  1. 帶入上次回應的 start_b64u 可完整重現該次結果（回放）
//  2. 回放不推進裝置：下一次新局與未回放的對照組一致
//  3. 帶入上次回應的 after_b64u 可延續亂數流水（續抽）
func TestSampleReplayAndResume(t *testing.T) {
	lab := newTestLab(t)
	d1, err := lab.NewDeviceWithSeed(athenaID, 7)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	d2, err := lab.NewDeviceWithSeed(athenaID, 7)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}

	w := []float64{5, 1, 1, 1, 1, 5, 3, 3}
	req := athenaReq(2, 4, 3, true, w)
	a := mustSample(t, d1, req)
	c := mustSample(t, d1, req)

	a2 := mustSample(t, d2, req)
	if !reflect.DeepEqual(a2.Categories, a.Categories) {
		t.Fatalf("same-seed devices diverged")
	}

	// 回放 a：結果與前後快照都要原樣重現
	replay := athenaReq(2, 4, 3, true, w)
	replay.StartState = &dto.StartState{StartStateB64U: a.State.StartStateB64U}
	b, err := d2.Sample(replay)
	if err != nil {
		t.Fatalf("replay err: %v", err)
	}
	if !reflect.DeepEqual(b.Categories, a.Categories) {
		t.Fatalf("replay did not reproduce categories")
	}
	if b.State != a.State {
		t.Fatalf("replay did not echo the original snapshots")
	}

	// 回放不推進：d2 的下一次新局必須等於 d1 的第二次
	c2 := mustSample(t, d2, req)
	if !reflect.DeepEqual(c2.Categories, c.Categories) {
		t.Fatalf("replay advanced the device stream")
	}

	// 續抽：以 a 的 after 為起點，結果等於緊接著 a 的那一次
	resume := athenaReq(2, 4, 3, true, w)
	resume.StartState = &dto.StartState{StartStateB64U: a.State.AfterStateB64U}
	r, err := d2.Sample(resume)
	if err != nil {
		t.Fatalf("resume err: %v", err)
	}
	if !reflect.DeepEqual(r.Categories, c.Categories) {
		t.Fatalf("resume from after snapshot diverged")
	}
}

// TestSampleUniformConvergence 以均勻權重大樣本驗證經驗頻率貼近理論機率
func TestSampleUniformConvergence(t *testing.T) {
	lab := newTestLab(t)
	d, err := lab.NewDeviceWithSeed(athenaID, 99)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	const samples = 100000
	res := mustSample(t, d, athenaReq(1, 4, samples, true, []float64{1, 1, 1, 1}))
	counts := make([]int, 5)
	for _, c := range res.Categories[0] {
		if c < 1 || c > 4 {
			t.Fatalf("category out of range: %d", c)
		}
		counts[c]++
	}
	for cat := 1; cat <= 4; cat++ {
		f := float64(counts[cat]) / samples
		if math.Abs(f-0.25) > 0.01 {
			t.Fatalf("category %d freq %.4f deviates from 0.25", cat, f)
		}
	}
}

// TestSamplePresetFromBank 驗證 bank 預載矩陣可被 preset 指名使用
//
// 檢查項目:
//  1. preset 指名矩陣後 rows/cols 可缺省（採用矩陣形狀）
//  2. preset 名稱大小寫不敏感、replacement 缺省為放回式
//  3. 不存在的 preset 與形狀衝突都被拒絕
func TestSamplePresetFromBank(t *testing.T) {
	m := &bank.Matrix{Name: "grand", Rows: 2, Cols: 3, Weights: []float64{1, 2, 3, 3, 2, 1}}
	var raw bytes.Buffer
	if err := bank.WriteMatrix(&raw, m, true); err != nil {
		t.Fatalf("write matrix err: %v", err)
	}

	cfg := fstest.MapFS{
		"vault.yaml": &fstest.MapFile{Data: []byte(
			"engine_name: vault\n" +
				"engine_id: 1003\n" +
				"blocks: 2\n" +
				"lanes: 4\n" +
				"bank:\n" +
				"  use_bank: true\n" +
				"  matrices:\n" +
				"    - grand.json.zst\n")},
	}
	bankFS := fstest.MapFS{"grand.json.zst": &fstest.MapFile{Data: raw.Bytes()}}

	lab, err := NewAuto(nil, Configs(cfg), bankFS)
	if err != nil {
		t.Fatalf("NewAuto err: %v", err)
	}
	d, err := lab.NewDeviceWithSeed(1003, 3)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}

	res, err := d.Sample(&dto.SampleRequest{EngineName: "vault", EngineID: 1003, Samples: 2, Preset: "GRAND"})
	if err != nil {
		t.Fatalf("preset sample err: %v", err)
	}
	if res.Rows != 2 || res.Cols != 3 {
		t.Fatalf("preset did not adopt matrix shape: %dx%d", res.Rows, res.Cols)
	}
	if len(res.Categories) != 2 || len(res.Categories[0]) != 2 {
		t.Fatalf("unexpected result shape: %v", res.Categories)
	}
	if !res.Replacement {
		t.Fatalf("replacement should default to true")
	}

	miss := &dto.SampleRequest{EngineName: "vault", EngineID: 1003, Preset: "ghost"}
	if _, err := d.Sample(miss); err == nil || !strings.Contains(err.Error(), "not found in bank") {
		t.Fatalf("want preset not found, got %v", err)
	}
	clash := &dto.SampleRequest{EngineName: "vault", EngineID: 1003, Rows: 4, Preset: "grand"}
	if _, err := d.Sample(clash); err == nil || !strings.Contains(err.Error(), "does not match request") {
		t.Fatalf("want shape clash, got %v", err)
	}
}

// ----- Tests for Device.Fill -----

// TestFillLogNormal 驗證對數常態填充的域與回放
//
// 檢查項目:
//  1. count 筆輸出全為正且有限（lognormal 域）
//  2. 帶入 start_b64u 可在另一座裝置重現整段填充
//  3. count 上限與 stddev 域檢查生效
func TestFillLogNormal(t *testing.T) {
	lab := newTestLab(t)
	d1, err := lab.NewDeviceWithSeed(athenaID, 55)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}

	fr := &dto.FillRequest{EngineName: "athena", EngineID: athenaID, Count: 4097, Mean: 0.4, Stddev: 0.25}
	res, err := d1.Fill(fr)
	if err != nil {
		t.Fatalf("fill err: %v", err)
	}
	if res.Count != 4097 || len(res.Values) != 4097 {
		t.Fatalf("fill count mismatch: %d values", len(res.Values))
	}
	for i, v := range res.Values {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("values[%d] = %v outside lognormal domain", i, v)
		}
	}

	d2, err := lab.NewDeviceWithSeed(athenaID, 56)
	if err != nil {
		t.Fatalf("new device err: %v", err)
	}
	rr := &dto.FillRequest{
		EngineName: "athena", EngineID: athenaID, Count: 4097, Mean: 0.4, Stddev: 0.25,
		StartState: &dto.StartState{StartStateB64U: res.State.StartStateB64U},
	}
	res2, err := d2.Fill(rr)
	if err != nil {
		t.Fatalf("fill replay err: %v", err)
	}
	if !reflect.DeepEqual(res2.Values, res.Values) {
		t.Fatalf("replayed fill diverged")
	}

	over := &dto.FillRequest{EngineName: "athena", EngineID: athenaID, Count: 1 << 25, Mean: 0, Stddev: 1}
	if _, err := d1.Fill(over); err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Fatalf("want count limit err, got %v", err)
	}
	bad := &dto.FillRequest{EngineName: "athena", EngineID: athenaID, Count: 1, Mean: 0, Stddev: -1}
	if _, err := d1.Fill(bad); err == nil || !strings.Contains(err.Error(), "stddev must be finite") {
		t.Fatalf("want stddev domain err, got %v", err)
	}
}

// ----- Tests for EngineRuntime -----

// TestEngineRuntimeSampleAndMetrics 驗證 runtime 的路由與觀測
//
// 檢查項目:
//  1. 依 EngineID 路由到正確的池（兩種精度/generator 都可用）
//  2. 未知引擎與已取消的 context 都被擋下
//  3. Metrics 依固定順序回報每池快照
func TestEngineRuntimeSampleAndMetrics(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(2)
	if err != nil {
		t.Fatalf("build runtime err: %v", err)
	}
	defer rt.Close()

	res, err := rt.Sample(context.Background(), athenaReq(2, 3, 2, true, []float64{1, 2, 3, 3, 2, 1}))
	if err != nil {
		t.Fatalf("runtime sample err: %v", err)
	}
	if res.EngineName != "athena" || len(res.Categories) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	hres, err := rt.Sample(context.Background(), newReq("hermes", hermesID, 1, 4, 2, true, []float64{1, 1, 1, 1}))
	if err != nil {
		t.Fatalf("hermes sample err: %v", err)
	}
	for _, c := range hres.Categories[0] {
		if c < 1 || c > 4 {
			t.Fatalf("category out of range: %d", c)
		}
	}

	fres, err := rt.Fill(context.Background(), &dto.FillRequest{EngineName: "athena", EngineID: athenaID, Count: 64, Mean: 0, Stddev: 0.5})
	if err != nil || len(fres.Values) != 64 {
		t.Fatalf("runtime fill err: %v (%d values)", err, len(fres.Values))
	}

	ghost := newReq("ghost", 9999, 1, 2, 1, true, []float64{1, 1})
	if _, err := rt.Sample(context.Background(), ghost); err == nil || !strings.Contains(err.Error(), "engine id not found") {
		t.Fatalf("want engine id not found, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Sample(ctx, athenaReq(1, 2, 1, true, []float64{1, 1})); err == nil || !strings.Contains(err.Error(), "sample canceled/timeout") {
		t.Fatalf("want cancel err, got %v", err)
	}

	ms := rt.Metrics()
	if len(ms) != 2 {
		t.Fatalf("want metrics for 2 pools, got %d", len(ms))
	}
	for _, m := range ms {
		if m.PoolSize != 2 {
			t.Fatalf("[%s] pool size = %d, want 2", m.EngineName, m.PoolSize)
		}
		if m.Closed {
			t.Fatalf("[%s] pool closed prematurely", m.EngineName)
		}
		if m.CloseAvail != -1 || m.CloseInflight != -1 {
			t.Fatalf("[%s] close snapshot written before close", m.EngineName)
		}
	}

	sum, err := rt.Summary()
	if err != nil || len(sum) != 2 {
		t.Fatalf("runtime summary err: %v", err)
	}
}

func TestEngineRuntimeClose(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("build runtime err: %v", err)
	}
	if _, err := rt.Sample(context.Background(), athenaReq(1, 2, 1, true, []float64{1, 1})); err != nil {
		t.Fatalf("sample before close err: %v", err)
	}

	rt.Close()
	if !rt.Closed() || rt.ClosedReason() != "closed" {
		t.Fatalf("close state mismatch: closed=%v reason=%q", rt.Closed(), rt.ClosedReason())
	}
	_, err = rt.Sample(context.Background(), athenaReq(1, 2, 1, true, []float64{1, 1}))
	if err == nil || !strings.Contains(err.Error(), "engine runtime closed") {
		t.Fatalf("want closed err, got %v", err)
	}
	if errs.IsWarn(err) {
		t.Fatalf("closed runtime should not be a Warn: %v", err)
	}

	// 池一併關閉，關閉瞬間的快照已寫入
	for _, m := range rt.Metrics() {
		if !m.Closed || m.CloseReason == "" {
			t.Fatalf("[%s] pool should be closed", m.EngineName)
		}
		if m.CloseAvail == -1 || m.CloseInflight == -1 {
			t.Fatalf("[%s] close snapshot missing", m.EngineName)
		}
	}

	// 重複關閉是安全的
	rt.Close()
}

// ----- Tests for Verifier -----

// TestVerifierVerify 驗證單線驗證器的統計口徑
//
// 檢查項目:
//  1. Rounds/TotalDraws 記帳與實跑一致、無超界類別
//  2. 經驗頻率對理論值的最大絕對誤差收斂
func TestVerifierVerify(t *testing.T) {
	lab := newTestLab(t)
	vf, err := lab.NewVerifierWithSeed(athenaID, 11)
	if err != nil {
		t.Fatalf("new verifier err: %v", err)
	}
	w := []float64{1, 1, 1, 1}
	rep, used, err := vf.Verify(w, 1, 4, 1, true, 20000, false)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	s := rep.Summary
	if s.Rounds != 20000 || s.TotalDraws != 20000 {
		t.Fatalf("draw accounting mismatch: rounds=%d draws=%d", s.Rounds, s.TotalDraws)
	}
	if s.InvalidDraws != 0 {
		t.Fatalf("invalid draws: %d", s.InvalidDraws)
	}
	if s.MaxAbsErr > 0.02 {
		t.Fatalf("max abs err %.4f too large", s.MaxAbsErr)
	}
	if s.EngineName != "athena" || s.EngineID != athenaID {
		t.Fatalf("report identity mismatch: %+v", s)
	}
	if used <= 0 {
		t.Fatalf("elapsed time not recorded")
	}
	total := 0
	for _, c := range rep.Tally.Counts {
		total += c
	}
	if total != 20000 {
		t.Fatalf("tally total = %d, want 20000", total)
	}
}

// TestVerifierVerifyMP 驗證多工驗證器會合併 mp 座裝置的統計
func TestVerifierVerifyMP(t *testing.T) {
	lab := newTestLab(t)
	vf, err := lab.NewVerifierWithSeed(athenaID, 12)
	if err != nil {
		t.Fatalf("new verifier err: %v", err)
	}
	w := []float64{1, 1, 1, 1}
	rep, _, err := vf.VerifyMP(w, 1, 4, 1, true, 10000, 2, false)
	if err != nil {
		t.Fatalf("verifyMP err: %v", err)
	}
	if rep.Summary.Rounds != 20000 || rep.Summary.TotalDraws != 20000 {
		t.Fatalf("merged accounting mismatch: rounds=%d draws=%d", rep.Summary.Rounds, rep.Summary.TotalDraws)
	}
	if rep.Summary.InvalidDraws != 0 {
		t.Fatalf("invalid draws: %d", rep.Summary.InvalidDraws)
	}
	if rep.Summary.MaxAbsErr > 0.02 {
		t.Fatalf("max abs err %.4f too large", rep.Summary.MaxAbsErr)
	}
}

func TestVerifierArgChecks(t *testing.T) {
	lab := newTestLab(t)
	vf, err := lab.NewVerifierWithSeed(athenaID, 14)
	if err != nil {
		t.Fatalf("new verifier err: %v", err)
	}
	w := []float64{1, 1, 1, 1}
	if _, _, err := vf.Verify(w, 1, 4, 1, true, 0, false); err == nil || !strings.Contains(err.Error(), "round must > 0") {
		t.Fatalf("want round check, got %v", err)
	}
	if _, _, err := vf.Verify([]float64{1}, 1, 4, 1, true, 10, false); err == nil || !strings.Contains(err.Error(), "weights length err") {
		t.Fatalf("want weights length check, got %v", err)
	}
	if _, _, err := vf.VerifyMP(w, 1, 4, 1, true, 10, 0, false); err == nil || !strings.Contains(err.Error(), "workers must > 0") {
		t.Fatalf("want workers check, got %v", err)
	}
	if _, _, err := vf.VerifyLogNormal(0, 0, 1, 1, false); err == nil || !strings.Contains(err.Error(), "count must > 0") {
		t.Fatalf("want count check, got %v", err)
	}
}

// TestVerifierLogNormal 驗證對數常態填充的動差回推
//
// 檢查項目:
//  1. 樣本總數 = count*mp
//  2. log 域樣本平均/標準差緊貼 mu/sigma
//  3. 原始域樣本平均貼近理論 E[X]
func TestVerifierLogNormal(t *testing.T) {
	lab := newTestLab(t)
	vf, err := lab.NewVerifierWithSeed(athenaID, 13)
	if err != nil {
		t.Fatalf("new verifier err: %v", err)
	}
	rep, _, err := vf.VerifyLogNormal(50000, 0.4, 0.25, 2, false)
	if err != nil {
		t.Fatalf("verify lognormal err: %v", err)
	}
	if rep.Count != 100000 {
		t.Fatalf("sample count = %d, want 100000", rep.Count)
	}
	if rep.Mu != 0.4 || rep.Sigma != 0.25 {
		t.Fatalf("parameter echo mismatch: %+v", rep)
	}
	if math.Abs(rep.LogMean-0.4) > 0.01 {
		t.Fatalf("log mean %.4f deviates from 0.4", rep.LogMean)
	}
	if math.Abs(rep.LogStd-0.25) > 0.01 {
		t.Fatalf("log std %.4f deviates from 0.25", rep.LogStd)
	}
	if math.Abs(rep.RawMean-rep.WantMean) > 0.05 {
		t.Fatalf("raw mean %.4f deviates from %.4f", rep.RawMean, rep.WantMean)
	}
}

// ----- Tests for Replay -----

// TestReplaySamples 驗證重播器的流水帳與跨座重現
//
// 檢查項目:
//  1. 連跑 round 次的記帳（TotalDraws/Invalid/前後快照）正確
//  2. 以 Before 快照在另一個重播器上可完整重現整段結果
func TestReplaySamples(t *testing.T) {
	lab := newTestLab(t)
	rp, err := lab.NewReplay(athenaID, 21)
	if err != nil {
		t.Fatalf("new replay err: %v", err)
	}
	w := []float64{1, 2, 3, 4, 4, 3, 2, 1}
	rep, err := rp.Samples(w, 2, 4, 2, true, 3)
	if err != nil {
		t.Fatalf("replay samples err: %v", err)
	}
	if rep.Round != 3 || len(rep.Results) != 3 {
		t.Fatalf("round accounting mismatch: %+v", rep)
	}
	if rep.TotalDraws != 12 || rep.Invalid != 0 {
		t.Fatalf("draw accounting mismatch: draws=%d invalid=%d", rep.TotalDraws, rep.Invalid)
	}
	if rep.Before != rep.Results[0].State.StartStateB64U {
		t.Fatalf("before snapshot mismatch")
	}
	if rep.After != rep.Results[2].State.AfterStateB64U {
		t.Fatalf("after snapshot mismatch")
	}

	rp2, err := lab.NewReplay(athenaID, 22)
	if err != nil {
		t.Fatalf("new replay err: %v", err)
	}
	rep2, err := rp2.RestoreSamples(rep.Before, w, 2, 4, 2, true, 3)
	if err != nil {
		t.Fatalf("restore samples err: %v", err)
	}
	if !reflect.DeepEqual(rep2.Results, rep.Results) {
		t.Fatalf("restored run diverged")
	}

	if _, err := rp.Samples(w, 2, 4, 2, true, 0); err == nil || !strings.Contains(err.Error(), "between 1 and 5,000") {
		t.Fatalf("want round limit err, got %v", err)
	}
}

// TestReplayVerify 驗證重播器的統計重現
func TestReplayVerify(t *testing.T) {
	lab := newTestLab(t)
	rp, err := lab.NewReplay(athenaID, 31)
	if err != nil {
		t.Fatalf("new replay err: %v", err)
	}
	w := []float64{1, 1, 1, 1}
	rep, err := rp.Verify(w, 1, 4, 1, true, 5000)
	if err != nil {
		t.Fatalf("replay verify err: %v", err)
	}
	if rep.Stat.Summary.Rounds != 5000 {
		t.Fatalf("rounds = %d, want 5000", rep.Stat.Summary.Rounds)
	}
	if rep.Before == "" || rep.After == "" || rep.Before == rep.After {
		t.Fatalf("snapshots not recorded")
	}

	rp2, err := lab.NewReplay(athenaID, 32)
	if err != nil {
		t.Fatalf("new replay err: %v", err)
	}
	rep2, err := rp2.RestoreVerify(rep.Before, w, 1, 4, 1, true, 5000)
	if err != nil {
		t.Fatalf("restore verify err: %v", err)
	}
	if !reflect.DeepEqual(rep2.Stat.Tally.Counts, rep.Stat.Tally.Counts) {
		t.Fatalf("restored verify diverged")
	}
	if rep2.After != rep.After {
		t.Fatalf("after snapshot mismatch")
	}

	if _, err := rp.Verify(w, 1, 4, 1, true, 0); err == nil || !strings.Contains(err.Error(), "between 1 and 3,000,000") {
		t.Fatalf("want round limit err, got %v", err)
	}
}
