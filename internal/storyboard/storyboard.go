package storyboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/fusionfolder/internal/domain"
)

// DefaultRelPath 是分镜清单相对项目根目录的固定位置。
var DefaultRelPath = filepath.Join("META", "STORYBOARD", "storyboard.data")

// Error 是清单读取阶段的结构化错误（带 error_code）。
//
// Problems 一次列出全部缺失/类型不符的字段，而不是遇到第一个就返回。
type Error struct {
	Code     string
	Path     string
	Problems []string
	Err      error
}

func (e *Error) Error() string {
	switch e.Code {
	case domain.ErrCodeManifestNotFound:
		return fmt.Sprintf("%s：未找到分镜清单 %q", e.Code, e.Path)
	case domain.ErrCodeManifestMalformed:
		if len(e.Problems) > 0 {
			return fmt.Sprintf("%s：分镜清单 %q 无效：%s", e.Code, e.Path, strings.Join(e.Problems, "；"))
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：分镜清单 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：分镜清单 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Read 读取分镜清单并返回规范化后的镜头列表（按清单顺序）。
//
// 规则（硬约束）：
// - 文件不存在：manifest_not_found
// - 非 JSON、缺少 Shots 数组、任一条目缺少 Name/FrameInterval 或类型不是字符串：manifest_malformed
// - 镜头名不能作为单个路径段、或重名：manifest_malformed
// - 任一问题都让整次读取失败，不返回部分列表
//
// FrameInterval 原样保留，这里不校验其语法。
func Read(path string) ([]domain.Shot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Code: domain.ErrCodeManifestNotFound, Path: path, Err: err}
		}
		return nil, &Error{Code: domain.ErrCodeManifestMalformed, Path: path, Err: err}
	}
	shots, problems, err := parse(bytes.TrimPrefix(b, utf8BOM))
	if err != nil {
		return nil, &Error{Code: domain.ErrCodeManifestMalformed, Path: path, Err: err}
	}
	if len(problems) > 0 {
		return nil, &Error{Code: domain.ErrCodeManifestMalformed, Path: path, Problems: problems}
	}
	return shots, nil
}

func parse(b []byte) ([]domain.Shot, []string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, nil, err
	}

	raw, ok := doc["Shots"]
	if !ok {
		return nil, []string{"缺少顶层字段 Shots"}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || isNull(raw) {
		return nil, []string{"Shots 必须是数组"}, nil
	}

	var problems []string
	shots := make([]domain.Shot, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for i, entry := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil || isNull(entry) {
			problems = append(problems, fmt.Sprintf("Shots[%d] 必须是对象", i))
			continue
		}

		name, p1 := stringField(obj, i, "Name")
		interval, p2 := stringField(obj, i, "FrameInterval")
		problems = append(problems, p1...)
		problems = append(problems, p2...)
		if len(p1) > 0 || len(p2) > 0 {
			continue
		}

		if err := CheckShotName(name); err != nil {
			problems = append(problems, fmt.Sprintf("Shots[%d].Name %v", i, err))
			continue
		}
		if j, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("Shots[%d].Name %q 与 Shots[%d] 重复", i, name, j))
			continue
		}
		seen[name] = i

		shots = append(shots, domain.Shot{Name: name, FrameInterval: interval})
	}

	return shots, problems, nil
}

func stringField(obj map[string]json.RawMessage, idx int, key string) (string, []string) {
	raw, ok := obj[key]
	if !ok {
		return "", []string{fmt.Sprintf("Shots[%d] 缺少字段 %s", idx, key)}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		return "", []string{fmt.Sprintf("Shots[%d].%s 必须是字符串，实际是 %s", idx, key, truncate(string(raw), 40))}
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// truncate 按字符（rune）截断，避免切断多字节 UTF-8 序列。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
