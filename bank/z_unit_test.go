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

package bank_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/zintix-labs/gridlab/bank"
	"github.com/zintix-labs/gridlab/spec"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func matrixBytes(t *testing.T, m *bank.Matrix, compress bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bank.WriteMatrix(&buf, m, compress); err != nil {
		t.Fatalf("write matrix: %v", err)
	}
	return buf.Bytes()
}

func statesBytes(t *testing.T, snaps [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bank.WriteStates(&buf, snaps); err != nil {
		t.Fatalf("write states: %v", err)
	}
	return buf.Bytes()
}

func sameMatrix(a, b *bank.Matrix) bool {
	if a.Name != b.Name || a.Rows != b.Rows || a.Cols != b.Cols || len(a.Weights) != len(b.Weights) {
		return false
	}
	for i := range a.Weights {
		if a.Weights[i] != b.Weights[i] {
			return false
		}
	}
	return true
}

// ---- Tests for Matrix ----

func TestLoadMatrixPlainAndZst(t *testing.T) {
	dir := t.TempDir()
	m := &bank.Matrix{Name: "uniform4", Rows: 2, Cols: 2, Weights: []float64{1, 2, 3, 4}}

	writeFile(t, dir, "m.json", matrixBytes(t, m, false))
	writeFile(t, dir, "m.json.zst", matrixBytes(t, m, true))

	bankFS := os.DirFS(dir)
	plain, err := bank.LoadMatrix(bankFS, "m.json")
	if err != nil {
		t.Fatalf("load plain: %v", err)
	}
	zst, err := bank.LoadMatrix(bankFS, "m.json.zst")
	if err != nil {
		t.Fatalf("load zst: %v", err)
	}
	if !sameMatrix(plain, m) || !sameMatrix(zst, m) {
		t.Fatalf("loaded matrices differ from source")
	}
}

func TestLoadMatrixValidation(t *testing.T) {
	dir := t.TempDir()
	bankFS := os.DirFS(dir)

	cases := []struct {
		file string
		body string
	}{
		{"noname.json", `{"rows":1,"cols":2,"weights":[1,2]}`},
		{"shape.json", `{"name":"x","rows":0,"cols":2,"weights":[]}`},
		{"len.json", `{"name":"x","rows":2,"cols":2,"weights":[1,2,3]}`},
		{"neg.json", `{"name":"x","rows":1,"cols":2,"weights":[1,-2]}`},
		{"badjson.json", `{`},
	}
	for _, cse := range cases {
		writeFile(t, dir, cse.file, []byte(cse.body))
		if _, err := bank.LoadMatrix(bankFS, cse.file); err == nil {
			t.Fatalf("%s should fail to load", cse.file)
		}
	}

	if _, err := bank.LoadMatrix(bankFS, "absent.json"); err == nil {
		t.Fatalf("missing file should fail")
	}
	if _, err := bank.LoadMatrix(nil, "m.json"); err == nil {
		t.Fatalf("nil fs should fail")
	}
}

// ---- Tests for StateBank ----

func TestStateBankRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snaps := [][]byte{
		{0x01, 0x02, 0x03},
		{},
		bytes.Repeat([]byte{0xAB}, 300),
	}
	writeFile(t, dir, "s.bin", statesBytes(t, snaps))

	sb, err := bank.LoadStates(os.DirFS(dir), "s.bin")
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	defer sb.Close()

	if sb.Len() != len(snaps) {
		t.Fatalf("frame count got %d want %d", sb.Len(), len(snaps))
	}
	for i, want := range snaps {
		got, ok := sb.Snapshot(i)
		if !ok || !bytes.Equal(got, want) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
	if _, ok := sb.Snapshot(len(snaps)); ok {
		t.Fatalf("out-of-range snapshot should not be ok")
	}
}

func TestStateBankTruncated(t *testing.T) {
	dir := t.TempDir()
	raw := statesBytes(t, [][]byte{{1, 2, 3, 4}})
	writeFile(t, dir, "cut.bin", raw[:len(raw)-2])

	if _, err := bank.LoadStates(os.DirFS(dir), "cut.bin"); err == nil {
		t.Fatalf("truncated bank should fail")
	}
}

func TestMapStates(t *testing.T) {
	dir := t.TempDir()
	snaps := [][]byte{{9, 8, 7}, {6, 5}}
	path := writeFile(t, dir, "s.bin", statesBytes(t, snaps))

	sb, err := bank.MapStates(path)
	if err != nil {
		t.Fatalf("map states: %v", err)
	}
	if sb.Len() != 2 {
		t.Fatalf("frame count got %d want 2", sb.Len())
	}
	got, ok := sb.Snapshot(1)
	if !ok || !bytes.Equal(got, snaps[1]) {
		t.Fatalf("mapped frame mismatch")
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := bank.MapStates(path + ".zst"); err == nil {
		t.Fatalf("mmap of .zst should be rejected")
	}
}

// ---- Tests for Runtime ----

func TestLoadRuntime(t *testing.T) {
	dir := t.TempDir()
	a := &bank.Matrix{Name: "alpha", Rows: 1, Cols: 3, Weights: []float64{1, 1, 2}}
	b := &bank.Matrix{Name: "beta", Rows: 2, Cols: 2, Weights: []float64{1, 0, 0, 1}}

	writeFile(t, dir, "a.json", matrixBytes(t, a, false))
	writeFile(t, dir, "b.json.zst", matrixBytes(t, b, true))
	writeFile(t, dir, "sa.bin", statesBytes(t, [][]byte{{1}, {2}}))
	writeFile(t, dir, "sb.bin", statesBytes(t, [][]byte{{3}}))

	es := &spec.EngineSetting{
		BankSetting: spec.BankSetting{
			UseBank:  true,
			Matrices: []string{"a.json", "b.json.zst"},
			States:   []string{"sa.bin", "sb.bin"},
			Mmap:     true,
		},
	}
	rt, err := bank.LoadRuntime(dir, es)
	if err != nil {
		t.Fatalf("load runtime: %v", err)
	}
	defer rt.Close()

	if rt.Len() != 2 {
		t.Fatalf("runtime len got %d want 2", rt.Len())
	}
	if m, ok := rt.Matrix("ALPHA "); !ok || m.Name != "alpha" {
		t.Fatalf("matrix lookup should normalize name")
	}
	if _, ok := rt.Matrix("gamma"); ok {
		t.Fatalf("unknown matrix should not resolve")
	}
	if sb := rt.States(0); sb == nil || sb.Len() != 2 {
		t.Fatalf("states[0] missing or wrong length")
	}
	if sb := rt.States(1); sb == nil || sb.Len() != 1 {
		t.Fatalf("states[1] missing or wrong length")
	}
	names := rt.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("names got %v", names)
	}
}

func TestLoadRuntimeNoBank(t *testing.T) {
	es := &spec.EngineSetting{}
	rt, err := bank.LoadRuntime(t.TempDir(), es)
	if err != nil {
		t.Fatalf("disabled bank should not error: %v", err)
	}
	if rt != nil {
		t.Fatalf("disabled bank should return nil runtime")
	}
}

func TestLoadRuntimeDuplicateName(t *testing.T) {
	dir := t.TempDir()
	m := &bank.Matrix{Name: "dup", Rows: 1, Cols: 1, Weights: []float64{1}}
	writeFile(t, dir, "m1.json", matrixBytes(t, m, false))
	writeFile(t, dir, "m2.json", matrixBytes(t, m, false))

	es := &spec.EngineSetting{
		BankSetting: spec.BankSetting{
			UseBank:  true,
			Matrices: []string{"m1.json", "m2.json"},
		},
	}
	if _, err := bank.LoadRuntime(dir, es); err == nil {
		t.Fatalf("duplicate matrix name should fail")
	}
}
