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

// mkbank 依矩陣設計圖生成 bank 檔案。
//
// 設計圖有兩個來源（擇一）：
//   - -engine：讀引擎預設檔 fixed 區塊內嵌的設計圖（athena 帶有一份）
//   - -design：獨立的設計圖 YAML，覆蓋 fixed 區塊
//
// 產物：
//   - <matrix_name>.json.zst 權重矩陣（-raw 時為未壓縮 .json）
//   - <matrix_name>_states.bin.zst 重啟快照庫（-states > 0 時；-raw 時為
//     未壓縮 .bin，可供引擎以 mmap 唯讀映射）
//
// 結束時印出可直接貼回引擎設定檔的 bank 區塊。
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/bank"
	"github.com/zintix-labs/gridlab/demo/demo_configs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/gen"
	"github.com/zintix-labs/gridlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// restartStride 相鄰重啟快照之間，每個 block 前進的抽取數。
// 快照沿引擎自己的亂數流等距取點，彼此不重疊。
const restartStride = 1 << 16

var cfg = struct {
	id     spec.EID
	design string
	out    string
	seed   int64
	raw    bool
	states int
}{id: 1001}

type eidFlag struct{ p *spec.EID }

func (f eidFlag) String() string { return fmt.Sprint(uint32(*f.p)) }
func (f eidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*f.p = spec.EID(u)
	return nil
}

func main() {
	flag.Var(eidFlag{&cfg.id}, "engine", "engine id, design comes from the preset's fixed block")
	flag.StringVar(&cfg.design, "design", "", "standalone design yaml, overrides the engine's fixed block")
	flag.StringVar(&cfg.out, "out", ".", "output directory")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.BoolVar(&cfg.raw, "raw", false, "write uncompressed .json / .bin (mmap-ready state bank)")
	flag.IntVar(&cfg.states, "states", 0, "also write a state bank with this many restart snapshots")
	flag.Parse()

	if cfg.states < 0 {
		log.Fatal("value err : states must >= 0")
	}
	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}

	lab, err := gridlab.NewAuto(nil, gridlab.Configs(demo_configs.FS), nil)
	if err != nil {
		log.Fatal(err)
	}
	es, err := lab.SettingById(cfg.id)
	if err != nil {
		log.Fatal(err)
	}
	d, err := newDesigner(es)
	if err != nil {
		log.Fatal(err)
	}

	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	p.Printf("%s[ENGINE:%s] [MATRIX:%dx%d] [SEED:%d]%s\n", green, es.EngineName, d.Rows(), d.Cols(), cfg.seed, reset)

	m, err := d.Design(core.New(core.Default().New(cfg.seed)))
	if err != nil {
		log.Fatal(err)
	}
	if strings.ContainsAny(m.Name, `/\`) {
		log.Fatal("value err : matrix_name must not contain path separators")
	}
	if err := os.MkdirAll(cfg.out, 0o755); err != nil {
		log.Fatal(err)
	}

	matFile, err := writeMatrix(m)
	if err != nil {
		log.Fatal(err)
	}
	stateFile := ""
	if cfg.states > 0 {
		if stateFile, err = writeStates(es, m.Name); err != nil {
			log.Fatal(err)
		}
	}

	// 貼回引擎設定檔即可啟用
	fmt.Println("bank:")
	fmt.Println("  use_bank: true")
	fmt.Printf("  matrices: [%s]\n", matFile)
	if stateFile != "" {
		fmt.Printf("  states: [%s]\n", stateFile)
		if cfg.raw {
			fmt.Println("  mmap: true")
		}
	}
}

// newDesigner 解出矩陣設計圖：-design 優先，否則讀引擎的 fixed 區塊
func newDesigner(es *spec.EngineSetting) (*gen.Designer, error) {
	if cfg.design != "" {
		abs, err := filepath.Abs(cfg.design)
		if err != nil {
			return nil, err
		}
		return gen.NewDesignerFS(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
	}
	ms, err := gen.FromEngineSetting(es)
	if err != nil {
		return nil, err
	}
	return gen.NewDesigner(ms)
}

func writeMatrix(m *bank.Matrix) (string, error) {
	name := m.Name + ".json"
	if !cfg.raw {
		name += ".zst"
	}
	f, err := os.Create(filepath.Join(cfg.out, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := bank.WriteMatrix(f, m, !cfg.raw); err != nil {
		return "", err
	}
	return name, nil
}

// writeStates 沿引擎的亂數流取 cfg.states 個等距重啟點寫成 state bank。
// 幾何與 PRNG 家族取自引擎設定，frame 才能被該引擎的 Device 還原。
func writeStates(es *spec.EngineSetting, base string) (string, error) {
	var factory core.PRNGFactory = core.Default()
	if es.Generator == spec.GeneratorPCG32 {
		factory = core.Compact()
	}
	sa := core.NewStateArray(factory, es.Blocks, es.Lanes, cfg.seed)

	snaps := make([][]byte, 0, cfg.states)
	for i := 0; i < cfg.states; i++ {
		s, err := sa.Snapshot()
		if err != nil {
			return "", err
		}
		snaps = append(snaps, s)
		for b := 0; b < sa.Blocks(); b++ {
			c := sa.At(b)
			for k := 0; k < restartStride; k++ {
				c.Uint64()
			}
		}
	}

	name := base + "_states.bin"
	if !cfg.raw {
		name += ".zst"
	}
	f, err := os.Create(filepath.Join(cfg.out, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if cfg.raw {
		return name, bank.WriteStates(f, snaps)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", err
	}
	if err := bank.WriteStates(zw, snaps); err != nil {
		zw.Close()
		return "", err
	}
	return name, zw.Close()
}
