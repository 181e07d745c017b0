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

package sampler

import "github.com/zintix-labs/gridlab/sdk/grid"

// SearchCDF 在 inclusive 前綴和切片上找出第一個值 >= target 的
// 0-based 索引。浮點誤差讓所有元素都 < target 時回傳 0：
// 多樣本 kernel 把回傳值 +1 當類別編號，所以 fallback 落在類別 1，
// 絕不會指出界。
func SearchCDF[F grid.Floaters](cdf []F, target F) int {
	start, end := 0, len(cdf)
	for start < end {
		mid := start + (end-start)/2
		if cdf[mid] < target {
			start = mid + 1
		} else {
			end = mid
		}
	}
	if start == len(cdf) {
		start = 0
	}
	return start
}
