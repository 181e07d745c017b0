package spec

import "github.com/zintix-labs/gridlab/errs"

// VerifySetting 控制驗證流程（/v1/verify 與模擬器收斂檢查）的參數。
type VerifySetting struct {
	// Draws 是頻率驗證的抽樣次數。
	Draws int `yaml:"draws"     json:"draws"`
	// Tolerance 是各類別經驗頻率與理論機率的最大容許絕對差。
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
	// Alpha 是卡方適合度檢定的顯著水準。
	Alpha float64 `yaml:"alpha"     json:"alpha"`
}

func (s *VerifySetting) init() error {
	if s.Draws == 0 {
		s.Draws = 100000
	}
	if s.Tolerance == 0 {
		s.Tolerance = 0.01
	}
	if s.Alpha == 0 {
		s.Alpha = 0.01
	}
	return s.valid()
}

func (s VerifySetting) valid() error {
	if s.Draws < 1 {
		return errs.Fatalf("verify_setting: draws must be positive, got %d", s.Draws)
	}
	if s.Tolerance <= 0 || s.Tolerance >= 1 {
		return errs.Fatalf("verify_setting: tolerance %v outside (0,1)", s.Tolerance)
	}
	if s.Alpha <= 0 || s.Alpha >= 1 {
		return errs.Fatalf("verify_setting: alpha %v outside (0,1)", s.Alpha)
	}
	return nil
}
