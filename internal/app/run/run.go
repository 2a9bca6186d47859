package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/fusionfolder/internal/app/planner"
	"github.com/John-Robertt/fusionfolder/internal/comp"
	"github.com/John-Robertt/fusionfolder/internal/config"
	"github.com/John-Robertt/fusionfolder/internal/domain"
	"github.com/John-Robertt/fusionfolder/internal/infra/fsx"
	"github.com/John-Robertt/fusionfolder/internal/render"
	"github.com/John-Robertt/fusionfolder/internal/storyboard"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
//
// 清单/模板读取失败会中止整个 run（且不做任何写入）；
// 镜头级别的失败只记录在该镜头的 ShotResult 里，不影响其他镜头。
func Execute(ctx context.Context, eff config.EffectiveConfig, res render.Resolver, log *zap.Logger) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, res, log, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, res render.Resolver, log *zap.Logger, obs Observer) domain.RunReport {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("root", eff.Root), zap.Bool("dry_run", eff.DryRun))

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Root:      eff.Root,
		DryRun:    eff.DryRun,
		StartedAt: time.Now().UTC(),
	}
	abort := func(code, msg string) domain.RunReport {
		log.Error("run 中止", zap.String("error_code", code), zap.String("error", msg))
		rr.Shots = append(rr.Shots, syntheticFailed(code, msg))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	manifestStarted := time.Now()
	shots, err := storyboard.Read(eff.Storyboard)
	if err != nil {
		code := storyboard.Code(err)
		if code == "" {
			code = domain.ErrCodeManifestMalformed
		}
		return abort(code, err.Error())
	}
	log.Debug("分镜清单已读取", zap.String("path", eff.Storyboard), zap.Int("shots", len(shots)))
	if obs != nil {
		obs.OnPhaseDone("manifest", map[string]any{"shots": len(shots)}, time.Since(manifestStarted))
	}

	prepareStarted := time.Now()
	var template []byte
	if eff.Templating() {
		template, err = os.ReadFile(eff.Template)
		if err != nil {
			return abort(domain.ErrCodeTemplateUnreadable, fmt.Sprintf("读取模板 %q 失败：%v", eff.Template, err))
		}
	}

	if !eff.DryRun {
		if _, err := fsx.EnsureDir(eff.OrgPath()); err != nil {
			return abort(ioCode(err), fmt.Sprintf("创建组织目录失败：%v", err))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("prepare", map[string]any{
			"org":        eff.OrgPath(),
			"templating": eff.Templating(),
		}, time.Since(prepareStarted))
	}

	// 串行、按清单顺序：每个镜头只写自己的目录，彼此独立。
	shotsStarted := time.Now()
	rr.Shots = make([]domain.ShotResult, 0, len(shots))
	for i, shot := range shots {
		if err := ctx.Err(); err != nil {
			rr.Shots = append(rr.Shots, syntheticFailed(domain.ErrCodeCancelled, fmt.Sprintf("run 已取消，剩余 %d 个镜头未处理：%v", len(shots)-i, err)))
			break
		}

		oneStarted := time.Now()
		r := execShot(eff, template, shot, res, log.With(zap.String("shot", shot.Name)))
		rr.Shots = append(rr.Shots, r)
		if obs != nil {
			obs.OnShotDone(i+1, len(shots), r, time.Since(oneStarted))
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	if obs != nil {
		obs.OnPhaseDone("shots", map[string]any{
			"created": rr.Summary.Created,
			"skipped": rr.Summary.Skipped,
			"partial": rr.Summary.Partial,
			"failed":  rr.Summary.Failed,
		}, time.Since(shotsStarted))
	}
	return rr
}

func execShot(eff config.EffectiveConfig, template []byte, shot domain.Shot, res render.Resolver, log *zap.Logger) domain.ShotResult {
	out := domain.ShotResult{
		Name:          shot.Name,
		FrameInterval: shot.FrameInterval,
		Status:        domain.StatusCreated, // 失败/跳过时覆盖
	}
	fail := func(code, msg string) domain.ShotResult {
		out.Status = domain.StatusFailed
		out.ErrorCode = code
		out.ErrorMsg = msg
		log.Warn("镜头处理失败", zap.String("error_code", code), zap.String("error", msg))
		return out
	}

	docExt := ""
	if eff.Templating() {
		docExt = eff.TemplateExt
	}
	p, err := planner.PlanShot(eff.OrgPath(), shot, docExt)
	if err != nil {
		return fail(ioCode(err), fmt.Sprintf("读取镜头目录状态失败：%v", err))
	}
	out.Document = p.DocumentPath

	if !eff.DryRun {
		for _, d := range []struct {
			need bool
			dir  string
		}{{p.NeedShotDir, p.ShotDir}, {p.NeedOutputDir, p.OutputDir}} {
			if !d.need {
				continue
			}
			if _, err := fsx.EnsureDir(d.dir); err != nil {
				return fail(ioCode(err), fmt.Sprintf("创建目录失败：%v", err))
			}
			log.Debug("目录已创建", zap.String("path", d.dir))
		}
	}

	if !eff.Templating() {
		if !p.NeedShotDir && !p.NeedOutputDir {
			out.Status = domain.StatusSkipped
		}
		return out
	}

	if p.DocumentExists {
		// 已生成过的镜头工程文件绝不覆盖（占位符已被消费，重跑也无法重新替换）。
		log.Info("工程文件已存在，跳过", zap.String("path", p.DocumentPath))
		out.Status = domain.StatusSkipped
		return out
	}

	start, end, err := comp.ParseInterval(shot.FrameInterval)
	if err != nil {
		return fail(domain.ErrCodeFrameIntervalInvalid, err.Error())
	}

	input, inputCode, inputErr := resolveInput(eff.Root, shot.Name, res, &out)
	if inputErr != nil {
		out.Status = domain.StatusPartial
		out.ErrorCode = inputCode
		out.ErrorMsg = inputErr.Error()
		log.Warn("未找到输入序列，保留输入占位符", zap.String("error_code", inputCode), zap.Error(inputErr))
	} else {
		out.Input = comp.SlashPath(input)
	}

	doc := comp.Patch(string(template), comp.Values{
		Range:  comp.TranslateRange(start + "-" + end),
		Output: comp.OutputPath(p.ShotDir, shot.Name),
		Input:  input,
	})

	if eff.DryRun {
		return out
	}

	if err := fsx.WriteFileAtomicNoOverwrite(p.ShotDir, filepath.Base(p.DocumentPath), []byte(doc)); err != nil {
		if errors.Is(err, os.ErrExist) {
			// 规划之后才出现：同样视为已存在，不覆盖。
			log.Info("工程文件已存在，跳过", zap.String("path", p.DocumentPath))
			out.Status = domain.StatusSkipped
			out.ErrorCode, out.ErrorMsg, out.Input = "", "", ""
			return out
		}
		return fail(ioCode(err), fmt.Sprintf("写入工程文件失败：%v", err))
	}
	log.Info("工程文件已生成", zap.String("path", p.DocumentPath), zap.String("input", out.Input))
	return out
}

// resolveInput 按 society 表解析渲染目录，再在其中定位最新序列的首帧。
// 任何一步失败都返回 (error_code, err)，由调用方降级为 partial。
func resolveInput(root, shot string, res render.Resolver, out *domain.ShotResult) (string, string, error) {
	if res == nil {
		return "", domain.ErrCodeRenderUnresolved, errors.New("未配置渲染目录解析")
	}
	renderRoot, err := res.RenderRoot(root, shot)
	if err != nil {
		return "", domain.ErrCodeRenderUnresolved, err
	}
	out.RenderRoot = renderRoot

	fi, err := os.Stat(renderRoot)
	if err != nil || !fi.IsDir() {
		return "", domain.ErrCodeRenderNotFound, fmt.Errorf("渲染目录不存在：%q", renderRoot)
	}

	frame, err := render.Locate(renderRoot)
	if err != nil {
		return "", domain.ErrCodeRenderNotFound, err
	}
	return frame, "", nil
}

func ioCode(err error) string {
	if fsx.IsPathTypeConflict(err) {
		return domain.ErrCodeTargetConflict
	}
	return domain.ErrCodeIOFailed
}

func syntheticFailed(code, msg string) domain.ShotResult {
	return domain.ShotResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
