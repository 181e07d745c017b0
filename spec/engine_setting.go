package spec

import (
	"fmt"

	"github.com/zintix-labs/gridlab/errs"
)

// EngineSetting 包含啟動一座取樣引擎所需的所有高階設定。
type EngineSetting struct {
	EngineName     string         `yaml:"engine_name"     json:"engine_name"`
	EngineID       EID            `yaml:"engine_id"       json:"engine_id"`
	Blocks         int            `yaml:"blocks"          json:"blocks"`
	Lanes          int            `yaml:"lanes"           json:"lanes"`
	Precision      Precision      `yaml:"precision"       json:"precision"`
	Generator      Generator      `yaml:"generator"       json:"generator"`
	MaxCategories  int            `yaml:"max_categories"  json:"max_categories"`
	MaxRows        int            `yaml:"max_rows"        json:"max_rows"`
	MaxSamples     int            `yaml:"max_samples"     json:"max_samples"`
	DefaultSamples int            `yaml:"default_samples" json:"default_samples"`
	BankSetting    BankSetting    `yaml:"bank"            json:"bank"`
	VerifySetting  VerifySetting  `yaml:"verify"          json:"verify"`
	Fixed          map[string]any `yaml:"fixed"           json:"fixed"`
}

// init
func (es *EngineSetting) init() error {
	if es.Precision == "" {
		es.Precision = PrecisionFloat64
	}
	if es.Generator == "" {
		es.Generator = GeneratorPCG64
	}
	if es.DefaultSamples == 0 {
		es.DefaultSamples = 1
	}
	if err := es.VerifySetting.init(); err != nil {
		return err
	}
	return es.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (es *EngineSetting) valid() error {

	if es.EngineName == "" {
		return errs.NewFatal("empty engine_name")
	}

	// valid launch shape
	if es.Blocks < 1 || es.Lanes < 1 {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:invalid launch shape %dx%d", es.EngineName, es.Blocks, es.Lanes))
	}

	if !es.Precision.valid() {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:unknown precision %q", es.EngineName, es.Precision))
	}
	if !es.Generator.valid() {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:unknown generator %q", es.EngineName, es.Generator))
	}

	// 容量上限：0 表示不設限，負值一律拒絕
	if es.MaxCategories < 0 || es.MaxRows < 0 || es.MaxSamples < 0 {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:negative capacity limit", es.EngineName))
	}
	if es.DefaultSamples < 1 {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:invalid default_samples %d", es.EngineName, es.DefaultSamples))
	}
	if es.MaxSamples > 0 && es.DefaultSamples > es.MaxSamples {
		return errs.NewFatal(fmt.Sprintf("engine_name: %s err:default_samples exceeds max_samples", es.EngineName))
	}

	if err := es.BankSetting.valid(); err != nil {
		return err
	}

	return nil
}
