package planner

import (
	"os"
	"path/filepath"

	"github.com/John-Robertt/fusionfolder/internal/comp"
	"github.com/John-Robertt/fusionfolder/internal/domain"
	"github.com/John-Robertt/fusionfolder/internal/infra/fsx"
)

// PlanShot 读取 <org>/<shot>/ 的现状（只做 stat，不读文件内容）并生成该镜头的计划。
//
// docExt 为空表示本次不生成工程文件。目录不存在不算错误；
// 已存在但类型不对（例如同名文件占住了目录位置）返回 PathTypeConflictError。
func PlanShot(orgPath string, shot domain.Shot, docExt string) (domain.ShotPlan, error) {
	shotDir := filepath.Join(orgPath, shot.Name)
	p := domain.ShotPlan{
		Shot:      shot,
		ShotDir:   shotDir,
		OutputDir: filepath.Join(shotDir, comp.OutputDirName),
	}

	var err error
	if p.NeedShotDir, err = needDir(p.ShotDir); err != nil {
		return domain.ShotPlan{}, err
	}
	if p.NeedShotDir {
		// 镜头目录都不存在，里面自然什么都没有。
		p.NeedOutputDir = true
	} else if p.NeedOutputDir, err = needDir(p.OutputDir); err != nil {
		return domain.ShotPlan{}, err
	}

	if docExt == "" {
		return p, nil
	}

	p.DocumentPath = filepath.Join(shotDir, shot.Name+docExt)
	fi, err := os.Lstat(p.DocumentPath)
	switch {
	case err == nil:
		if fi.IsDir() {
			return domain.ShotPlan{}, &fsx.PathTypeConflictError{Path: p.DocumentPath, Want: "file", Got: "dir"}
		}
		p.DocumentExists = true
	case !os.IsNotExist(err):
		return domain.ShotPlan{}, err
	}
	return p, nil
}

func needDir(dir string) (bool, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	if !fi.IsDir() {
		return false, &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	return false, nil
}
