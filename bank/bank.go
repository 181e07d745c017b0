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

// Package bank 管理預置權重矩陣與 state snapshot 檔案。
//
// 矩陣檔為 .json 或 .json.zst，state 檔為 length-prefixed frame 串接的
// .bin 或 .bin.zst。未壓縮的 .bin 可以用 mmap 以唯讀方式映射，frame 直接
// 指向映射記憶體，Close 前不可再使用取出的 snapshot。
package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/spec"
)

// Matrix 預置權重矩陣
type Matrix struct {
	Name    string    `json:"name"`
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"` // row-major rows*cols
}

func (m *Matrix) valid() error {
	if m.Name == "" {
		return errs.Warnf("matrix: name is required")
	}
	if m.Rows < 1 || m.Cols < 1 {
		return errs.Warnf("matrix %s: shape %dx%d invalid", m.Name, m.Rows, m.Cols)
	}
	if len(m.Weights) != m.Rows*m.Cols {
		return errs.Warnf("matrix %s: weights length %d != %d", m.Name, len(m.Weights), m.Rows*m.Cols)
	}
	for _, w := range m.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return errs.Warnf("matrix %s: weights must be finite and non-negative", m.Name)
		}
	}
	return nil
}

// StateBank 一組 state snapshot
//
// mmap 加載時 frames 為映射記憶體的子切片
type StateBank struct {
	frames [][]byte
	mm     mmap.MMap
	f      *os.File
}

func (b *StateBank) Len() int {
	return len(b.frames)
}

// Snapshot 取出第 i 個 snapshot。mmap bank 在 Close 之後不可再使用回傳值
func (b *StateBank) Snapshot(i int) ([]byte, bool) {
	if i < 0 || i >= len(b.frames) {
		return nil, false
	}
	return b.frames[i], true
}

func (b *StateBank) Close() error {
	var err error
	if b.mm != nil {
		if e := b.mm.Unmap(); e != nil {
			err = e
		}
		b.mm = nil
	}
	if b.f != nil {
		if e := b.f.Close(); e != nil && err == nil {
			err = e
		}
		b.f = nil
	}
	b.frames = nil
	return err
}

// Runtime 一顆引擎的 bank 資料
type Runtime struct {
	matrices []*Matrix
	states   []*StateBank // len 0 或與 matrices 等長,缺漏位置為 nil
	byName   map[string]int
}

func (rt *Runtime) Len() int {
	return len(rt.matrices)
}

func (rt *Runtime) Matrix(name string) (*Matrix, bool) {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	i, ok := rt.byName[name]
	if !ok {
		return nil, false
	}
	return rt.matrices[i], true
}

func (rt *Runtime) MatrixAt(i int) (*Matrix, bool) {
	if i < 0 || i >= len(rt.matrices) {
		return nil, false
	}
	return rt.matrices[i], true
}

// States 回傳矩陣對應的 state bank,未配置時回傳 nil
func (rt *Runtime) States(i int) *StateBank {
	if i < 0 || i >= len(rt.states) {
		return nil
	}
	return rt.states[i]
}

func (rt *Runtime) Names() []string {
	out := make([]string, 0, len(rt.matrices))
	for _, m := range rt.matrices {
		out = append(out, m.Name)
	}
	return out
}

func (rt *Runtime) Close() error {
	var err error
	for _, b := range rt.states {
		if b == nil {
			continue
		}
		if e := b.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// LoadMatrix 從 bankFS 加載矩陣文件（.json 或 .json.zst 格式）。
func LoadMatrix(bankFS fs.FS, path string) (*Matrix, error) {
	if bankFS == nil {
		return nil, errs.NewWarn("bankFS is nil")
	}
	if path == "" {
		return nil, errs.NewWarn("matrix path is empty")
	}

	raw, err := fs.ReadFile(bankFS, path)
	if err != nil {
		return nil, errs.Wrap(err, "read matrix file failed")
	}

	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		raw, err = decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	var m Matrix
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(err, "unmarshal matrix json failed")
	}
	if err := m.valid(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadStates 從 bankFS 加載 state bank 文件（.bin 或 .bin.zst 格式）。
func LoadStates(bankFS fs.FS, path string) (*StateBank, error) {
	if bankFS == nil {
		return nil, errs.NewWarn("bankFS is nil")
	}
	if path == "" {
		return nil, errs.NewWarn("states path is empty")
	}

	raw, err := fs.ReadFile(bankFS, path)
	if err != nil {
		return nil, errs.Wrap(err, "read states file failed")
	}

	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		raw, err = decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	frames, err := corefmt.SplitBlobFrames(raw)
	if err != nil {
		return nil, errs.Wrap(err, "parse state bank failed")
	}
	return &StateBank{frames: frames}, nil
}

// MapStates 以 mmap 唯讀映射未壓縮的 .bin state bank。
func MapStates(path string) (*StateBank, error) {
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		return nil, errs.NewWarn("mmap states requires an uncompressed .bin file")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "open states file failed")
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(err, "mmap states file failed")
	}

	frames, err := corefmt.SplitBlobFrames(mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, errs.Wrap(err, "parse state bank failed")
	}
	return &StateBank{frames: frames, mm: mm, f: f}, nil
}

// WriteMatrix 寫出矩陣文件,compress 為 true 時輸出 zstd 壓縮的 JSON。
func WriteMatrix(w io.Writer, m *Matrix, compress bool) error {
	if err := m.valid(); err != nil {
		return err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return errs.Wrap(err, "marshal matrix json failed")
	}
	if !compress {
		_, err = w.Write(raw)
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errs.Wrap(err, "create zstd writer failed")
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return errs.Wrap(err, "write compressed matrix failed")
	}
	return zw.Close()
}

// WriteStates 以 length-prefixed frame 串接寫出 snapshot 序列。
func WriteStates(w io.Writer, snaps [][]byte) error {
	for i, s := range snaps {
		if err := corefmt.WriteBlobFrame(w, s); err != nil {
			return errs.Wrap(err, fmt.Sprintf("write state frame %d failed", i))
		}
	}
	return nil
}

// LoadRuntime 從目錄加載 bank 資料。
//
// bank.mmap 開啟且 state 檔為未壓縮 .bin 時用 mmap 映射,否則整檔讀入。
func LoadRuntime(dir string, es *spec.EngineSetting) (*Runtime, error) {
	bs := es.BankSetting
	if !bs.UseBank {
		return nil, nil
	}
	if dir == "" {
		return nil, errs.NewWarn("bank dir is empty")
	}

	bankFS := os.DirFS(dir)
	return loadRuntime(bankFS, es, func(path string) (*StateBank, error) {
		if bs.Mmap && !strings.HasSuffix(strings.ToLower(path), ".zst") {
			return MapStates(filepath.Join(dir, path))
		}
		return LoadStates(bankFS, path)
	})
}

// LoadRuntimeFS 從 fs.FS 加載 bank 資料（embedded bank 用,不支援 mmap）。
func LoadRuntimeFS(bankFS fs.FS, es *spec.EngineSetting) (*Runtime, error) {
	bs := es.BankSetting
	if !bs.UseBank {
		return nil, nil
	}
	return loadRuntime(bankFS, es, func(path string) (*StateBank, error) {
		return LoadStates(bankFS, path)
	})
}

func loadRuntime(bankFS fs.FS, es *spec.EngineSetting, openStates func(string) (*StateBank, error)) (*Runtime, error) {
	bs := es.BankSetting

	// 校驗：states 數量必須為零或等於 matrices 數量
	if len(bs.States) != 0 && len(bs.States) != len(bs.Matrices) {
		return nil, errs.NewFatal(fmt.Sprintf("states count (%d) must match matrices count (%d)", len(bs.States), len(bs.Matrices)))
	}

	rt := &Runtime{
		matrices: make([]*Matrix, len(bs.Matrices)),
		states:   make([]*StateBank, len(bs.Matrices)),
		byName:   make(map[string]int, len(bs.Matrices)),
	}

	// 加載每個 bank 位置的 Matrix 和 StateBank
	for i := range bs.Matrices {
		m, err := LoadMatrix(bankFS, bs.Matrices[i])
		if err != nil {
			rt.Close()
			return nil, errs.Wrap(err, fmt.Sprintf("load matrix[%d] (%s) failed", i, bs.Matrices[i]))
		}
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if _, dup := rt.byName[key]; dup {
			rt.Close()
			return nil, errs.NewFatal(fmt.Sprintf("duplicate matrix name: %s", m.Name))
		}
		rt.matrices[i] = m
		rt.byName[key] = i

		if len(bs.States) == 0 || bs.States[i] == "" {
			continue
		}
		sb, err := openStates(bs.States[i])
		if err != nil {
			rt.Close()
			return nil, errs.Wrap(err, fmt.Sprintf("load states[%d] (%s) failed", i, bs.States[i]))
		}
		rt.states[i] = sb
	}

	return rt, nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errs.Wrap(err, "create zstd reader failed")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(err, "read decompressed data failed")
	}
	return raw, nil
}
