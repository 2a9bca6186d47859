package storyboard

import (
	"fmt"
	"strings"
	"unicode"
)

// CheckShotName 校验镜头名能否原样作为单个路径段使用。
//
// 镜头名会出现在 <org>/<shot>/、<shot>.comp、渲染目录与输出文件名中，
// 按 Windows 与 POSIX 的交集校验。
func CheckShotName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("不能为空")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%q 不是合法的目录名", name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return fmt.Errorf("%q 不能包含路径分隔符", name)
		}
		if strings.ContainsRune(`<>:"|?*`, r) {
			return fmt.Errorf("%q 包含非法字符 %q", name, r)
		}
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%q 包含控制字符", name)
		}
	}
	if strings.HasSuffix(name, " ") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%q 不能以空格或 '.' 结尾", name)
	}
	if isReservedDeviceName(name) {
		return fmt.Errorf("%q 是 Windows 保留设备名", name)
	}
	return nil
}

// isReservedDeviceName 判断 CON/PRN/AUX/NUL/COM1-9/LPT1-9（不区分大小写，带扩展名也算）。
func isReservedDeviceName(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	stem = strings.ToUpper(strings.TrimRight(stem, " "))
	switch stem {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}
	if len(stem) == 4 && (strings.HasPrefix(stem, "COM") || strings.HasPrefix(stem, "LPT")) {
		return stem[3] >= '1' && stem[3] <= '9'
	}
	return false
}
