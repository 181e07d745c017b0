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

package spec

import (
	"github.com/zintix-labs/gridlab/errs"
)

type BankSetting struct {
	UseBank  bool     `yaml:"use_bank"  json:"use_bank"`
	Matrices []string `yaml:"matrices"  json:"matrices"`
	States   []string `yaml:"states"    json:"states"`
	Mmap     bool     `yaml:"mmap"      json:"mmap"`
}

// valid validates the BankSetting configuration.
// Rules:
// 1) If UseBank is true, matrices must be non-empty.
// 2) states is optional; when present it pairs 1:1 with matrices.
func (s BankSetting) valid() error {
	if !s.UseBank {
		return nil
	}

	if len(s.Matrices) == 0 {
		return errs.NewFatal("bank_setting: matrices must not be empty when use_bank=true")
	}
	if len(s.States) != 0 && len(s.States) != len(s.Matrices) {
		return errs.Fatalf(
			"bank_setting: matrices and states length mismatch (matrices=%d states=%d)",
			len(s.Matrices),
			len(s.States),
		)
	}
	return nil
}
