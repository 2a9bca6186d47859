package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoVersionDir 表示渲染目录下没有纯数字命名的版本子目录。
	ErrNoVersionDir = errors.New("未找到数字命名的渲染版本目录")
	// ErrNoFrames 表示最新版本目录里没有序列帧文件。
	ErrNoFrames = errors.New("未找到序列帧文件")
)

const denoisedTag = "_denoised"

var (
	versionDirRE = regexp.MustCompile(`^\d+$`)
	frameFileRE  = regexp.MustCompile(`^.*\d+(?:_denoised)?\.\w+$`)
	digitsRE     = regexp.MustCompile(`\d+`)
)

// Locate 在某个镜头的渲染根目录下找到最新渲染序列的第一帧，返回其绝对路径。
//
// 规则（固定）：
// 1) 只看 root 的直接子目录，且名称必须是纯数字（版本号/时间戳）
// 2) 按修改时间倒序，取第一个；mtime 相同时按目录名字典序（os.ReadDir 的顺序，"10" 在 "2" 之前）
// 3) 只看该目录下的直接文件，文件名必须形如 "...<digits>.<ext>" 或 "...<digits>_denoised.<ext>"
// 4) 若存在 _denoised 文件，只在这些文件里选（降噪结果优先于原始渲染）
// 5) 按文件名中第一段数字升序，取第一个
//
// 找不到时返回包裹 ErrNoVersionDir / ErrNoFrames 的错误；调用方按“非致命”处理。
func Locate(root string) (string, error) {
	version, err := latestVersionDir(root)
	if err != nil {
		return "", err
	}
	frame, err := firstFrame(version)
	if err != nil {
		return "", err
	}
	return frame, nil
}

func latestVersionDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	dirs := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if !versionDirRE.MatchString(e.Name()) {
			continue
		}
		p := filepath.Join(root, e.Name())
		// 跟随符号链接：isdir/getmtime 看的是目标。
		fi, err := os.Stat(p)
		if err != nil || !fi.IsDir() {
			continue
		}
		dirs = append(dirs, candidate{path: p, modTime: fi.ModTime()})
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("%w：%q", ErrNoVersionDir, root)
	}

	// 稳定排序：mtime 相同的目录保持名称字典序。
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].modTime.After(dirs[j].modTime) })
	return dirs[0].path, nil
}

func firstFrame(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	hasDenoised := false
	for _, e := range entries {
		name := e.Name()
		if !frameFileRE.MatchString(name) {
			continue
		}
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
		if strings.Contains(name, denoisedTag) {
			hasDenoised = true
		}
	}

	if hasDenoised {
		filtered := names[:0]
		for _, n := range names {
			if strings.Contains(n, denoisedTag) {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}

	if len(names) == 0 {
		return "", fmt.Errorf("%w：%q", ErrNoFrames, dir)
	}

	sort.SliceStable(names, func(i, j int) bool {
		return lessNumeric(digitsRE.FindString(names[i]), digitsRE.FindString(names[j]))
	})
	return filepath.Join(dir, names[0]), nil
}

// lessNumeric 按十进制数值比较两段数字串，不做 int 转换（避免超长帧号溢出）。
func lessNumeric(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
