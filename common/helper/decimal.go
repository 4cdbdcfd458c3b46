package helper

import (
	"github.com/shopspring/decimal"
)

var (
	OneDecimal = decimal.NewFromInt(1)
)

// TrimDecimal 将 decimal 对象四舍五入到2位小数后输出字符串
// 直接使用 StringFixed(2)，避免截断导致的精度丢失
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}
