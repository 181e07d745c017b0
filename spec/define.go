package spec

// EID 是引擎設定在 Catalog 內的唯一識別碼，用於路由與查表。
type EID uint32

// Precision 選擇取樣引擎的浮點精度。兩種精度走獨立的抽號路徑，
// 同一 seed 下序列互不相同。
type Precision string

const (
	PrecisionFloat64 Precision = "float64"
	PrecisionFloat32 Precision = "float32"
)

func (p Precision) valid() bool {
	return p == PrecisionFloat64 || p == PrecisionFloat32
}

// Generator 選擇 lane 狀態陣列底層的 PRNG 家族。
type Generator string

const (
	GeneratorPCG64 Generator = "pcg64"
	GeneratorPCG32 Generator = "pcg32"
)

func (g Generator) valid() bool {
	return g == GeneratorPCG64 || g == GeneratorPCG32
}
