package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogFitReport log-normal 填充結果的動差檢定
type LogFitReport struct {
	Count    int     `json:"Count"`
	Mu       float64 `json:"Mu"`
	Sigma    float64 `json:"Sigma"`
	LogMean  float64 `json:"LogMean"`  // ln(x) 的樣本平均
	LogStd   float64 `json:"LogStd"`   // ln(x) 的樣本標準差
	WantMean float64 `json:"WantMean"` // 理論 E[X]
	RawMean  float64 `json:"RawMean"`  // X 的樣本平均
	PValue   float64 `json:"PValue"`   // log 域平均的雙尾 z 檢定
	Pass     bool    `json:"Pass"`
}

// FitLogNormal 檢定 values 是否符合 LogNormal(mu, sigma^2)
//
// 在 log 域對樣本平均做雙尾 z 檢定(標準誤 sigma/sqrt(n))，並回報
// 原始域樣本平均與理論 E[X] 供肉眼比對。alpha <= 0 時套用預設 0.01。
// 任何非正值直接判失敗(log-normal 樣本必為正)
func FitLogNormal(values []float64, mu, sigma, alpha float64) *LogFitReport {
	if alpha <= 0 {
		alpha = 0.01
	}
	out := &LogFitReport{
		Count: len(values),
		Mu:    mu,
		Sigma: sigma,
	}
	if len(values) == 0 {
		return out
	}

	logs := make([]float64, len(values))
	raw := 0.0
	for i, v := range values {
		if v <= 0 {
			return out
		}
		logs[i] = math.Log(v)
		raw += v
	}
	out.RawMean = raw / float64(len(values))

	logMean, logStd := stat.MeanStdDev(logs, nil)
	out.LogMean = logMean
	out.LogStd = logStd

	if sigma <= 0 {
		// 退化: 全部樣本應等於 exp(mu)
		out.PValue = 1
		out.Pass = math.Abs(logMean-mu) < 1e-9 && logStd < 1e-9
		return out
	}

	dist := distuv.LogNormal{Mu: mu, Sigma: sigma}
	out.WantMean = dist.Mean()

	se := sigma / math.Sqrt(float64(len(values)))
	z := (logMean - mu) / se
	out.PValue = 2 * distuv.Normal{Mu: 0, Sigma: 1}.Survival(math.Abs(z))
	out.Pass = out.PValue >= alpha
	return out
}
