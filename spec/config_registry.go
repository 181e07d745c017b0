package spec

import (
	"encoding/json"

	"github.com/zintix-labs/gridlab/errs"
	"gopkg.in/yaml.v3"
)

// GetEngineSettingByYAML
// 會讀取 YAML 設定、初始化各子設定並執行基本檢查後回傳。
func GetEngineSettingByYAML(data []byte) (*EngineSetting, error) {
	es := &EngineSetting{}
	if err := yaml.Unmarshal(data, es); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := es.init(); err != nil {
		return nil, errs.Wrap(err, "engine setting initialized err")
	}

	return es, nil
}

// GetEngineSettingByJSON
// 會讀取 Json 設定、初始化各子設定並執行基本檢查後回傳
func GetEngineSettingByJSON(data []byte) (*EngineSetting, error) {
	es := &EngineSetting{}
	if err := json.Unmarshal(data, es); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	// 設定檔初始化
	if err := es.init(); err != nil {
		return nil, errs.Wrap(err, "engine setting initialized err")
	}

	return es, nil
}
