package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"strconv"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/demo/demo_configs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/ops"
	"github.com/zintix-labs/gridlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.EID
	worker    int
	rows      int
	cols      int
	samples   int
	replace   bool
	rounds    int
	shape     string
	fit       bool
	seed      int64
	pprofmode string
}

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

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(eidFlag{&cfg.id}, "engine", "target engine id")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.rows, "rows", 16, "weight matrix rows")
	flag.IntVar(&cfg.cols, "cols", 16, "weight matrix cols (categories)")
	flag.IntVar(&cfg.samples, "samples", 0, "samples per row, 0 = engine default")
	flag.BoolVar(&cfg.replace, "replace", true, "sample with replacement")
	flag.IntVar(&cfg.rounds, "rounds", 100000, "rounds per worker")
	flag.StringVar(&cfg.shape, "shape", "ramp", "weight matrix shape: uniform|ramp")
	flag.BoolVar(&cfg.fit, "fit", false, "per-row fit analysis after verify")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs, block, mutex")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// 這裡解析並分支要執行的驗證器
func executeVerifier() {
	cfg.valid() // 基本檢查

	lab, err := gridlab.NewAuto(
		core.Default(),
		gridlab.Configs(demo_configs.FS),
		nil,
	)
	if err != nil {
		log.Fatal(err)
	}
	s, err := lab.NewVerifierWithSeed(cfg.id, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	ent, _ := lab.EntryById(cfg.id)
	cfg.name = ent.Name
	weights := cfg.matrix()
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	if !cfg.fit { // 純統計驗證
		if cfg.worker == 1 { // 單線程
			p.Printf("%s[ENGINE:%s] [SHAPE:%s %dx%d] [ROUNDS:%d]%s\n", green, cfg.name, cfg.shape, cfg.rows, cfg.cols, cfg.rounds, reset)
			st, used, _ := s.Verify(weights, cfg.rows, cfg.cols, cfg.samples, cfg.replace, cfg.rounds, true)
			st.StdOut(used)
		} else {
			p.Printf("%s[WORKERS:%d] [ENGINE:%s] [SHAPE:%s %dx%d] [ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.shape, cfg.rows, cfg.cols, cfg.worker*cfg.rounds, reset)
			st, used, _ := s.VerifyMP(weights, cfg.rows, cfg.cols, cfg.samples, cfg.replace, cfg.rounds, cfg.worker, true) // 併發
			st.StdOut(used)
		}
	} else { // 驗證後加跑逐列適合度分析
		p.Printf("%s[WORKERS:%d] [ENGINE:%s] [SHAPE:%s %dx%d ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.shape, cfg.rows, cfg.cols, cfg.worker*cfg.rounds, reset)
		st, est, used, _ := s.VerifyFit(weights, cfg.rows, cfg.cols, cfg.samples, cfg.replace, cfg.rounds, cfg.worker, true)
		st.StdOut(used)
		est.Out()
	}
}

// matrix 依 shape 旗標生成要驗證的權重矩陣
func (cfg *config) matrix() []float64 {
	switch cfg.shape {
	case "uniform":
		return ops.Uniform(cfg.rows, cfg.cols)
	case "ramp":
		return ops.Ramp(cfg.rows, cfg.cols)
	default:
		log.Fatal("value err : unknown shape " + cfg.shape)
		return nil
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}

	// 矩陣幾何檢查
	// 列數 > 0
	if cfg.rows < 1 {
		log.Fatal("value err : rows must > 0")
	}
	// 類別數量 > 0
	if cfg.cols < 1 {
		log.Fatal("value err : cols must > 0")
	}
	// 列數太多 resize
	if cfg.rows > 100000 {
		p.Printf("too much rows: %d resized to 100k rows\n", cfg.rows)
		cfg.rows = 100000
	}

	// 取樣數不能是負值，0 會套用引擎的 default_samples
	if cfg.samples < 0 {
		log.Fatal("value err : samples must >= 0")
	}

	// 輪數檢查
	if cfg.rounds < 1 {
		log.Fatal("value err : rounds must > 0")
	}

	// 逐列擬合會對每一列保留完整頻率表，太多列沒有意義
	// 對肉眼分析來說 100列已經超出可讀範圍，直接看整體報表的卡方與通過率即可
	if cfg.fit && cfg.rows > 100 {
		p.Printf("too much rows for row fitting : %d resized to 100 rows\n", cfg.rows)
		cfg.rows = 100
	}
}
