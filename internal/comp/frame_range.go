package comp

import (
	"fmt"
	"regexp"
	"strings"
)

// TranslateRange 把分镜清单的区间（"1001-1050"）翻译为 .comp 的区间字面量（"{1001, 1050}"）。
//
// 纯语法替换：不解析整数，不校验分隔符个数与先后顺序。需要校验时先调用 ParseInterval。
func TranslateRange(interval string) string {
	return "{" + strings.ReplaceAll(interval, "-", ", ") + "}"
}

var intervalRE = regexp.MustCompile(`^\s*(\d+)\s*-\s*(\d+)\s*$`)

// IntervalError 表示帧区间不是 "<int>-<int>" 形态。
type IntervalError struct {
	Interval string
}

func (e *IntervalError) Error() string {
	return fmt.Sprintf("帧区间 %q 无效：期望形如 \"1001-1050\"（恰好一个 '-'，两侧为整数）", e.Interval)
}

// ParseInterval 校验帧区间并返回 start/end 两个整数 token（原样字符串，不转 int）。
// start <= end 不在这里强制。
func ParseInterval(interval string) (start, end string, err error) {
	m := intervalRE.FindStringSubmatch(interval)
	if m == nil {
		return "", "", &IntervalError{Interval: interval}
	}
	return m[1], m[2], nil
}
