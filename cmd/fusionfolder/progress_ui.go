package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/fusionfolder/internal/app/run"
	"github.com/John-Robertt/fusionfolder/internal/config"
	"github.com/John-Robertt/fusionfolder/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐行进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约；
// run 层只发事件，展示方式由 CLI 决定。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "apply"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		modeHint = " (不写入)"
	}

	fmt.Fprintf(p.w, "[%s] fusionfolder run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  root: %s\n", eff.Root)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  storyboard: %s\n", eff.Storyboard)
	fmt.Fprintf(p.w, "  template: %s\n", formatTemplate(eff))
	fmt.Fprintf(p.w, "  society: %s\n", formatSociety(eff))
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  shots: %s\n", filepath.Join(eff.OrgPath(), "<镜头>"))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "manifest":
		fmt.Fprintf(p.w, "清单: shots=%d (%s)\n", intField(fields, "shots"), formatShortDuration(dur))
	case "prepare":
		fmt.Fprintf(p.w, "准备: templating=%s (%s)\n\n", onOff(boolField(fields, "templating")), formatShortDuration(dur))
	case "shots":
		fmt.Fprintf(p.w, "\n镜头: created=%d skipped=%d partial=%d failed=%d (elapsed %s)\n",
			intField(fields, "created"),
			intField(fields, "skipped"),
			intField(fields, "partial"),
			intField(fields, "failed"),
			formatElapsed(time.Since(p.startedAt)),
		)
	default:
		// 兜底：未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnShotDone(idx, total int, res domain.ShotResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s (%s)\n", formatShotLine(idx, total, res), formatShortDuration(dur))
}

func formatShotLine(idx, total int, res domain.ShotResult) string {
	head := fmt.Sprintf("[%d/%d] %s", idx, total, res.Name)
	switch res.Status {
	case domain.StatusCreated:
		if res.Input != "" {
			return head + " OK input=" + truncate(res.Input, 120)
		}
		return head + " OK"
	case domain.StatusSkipped:
		return head + " SKIP (已存在，不覆盖)"
	case domain.StatusPartial:
		return head + " PART " + res.ErrorCode + ": " + truncate(res.ErrorMsg, 160)
	case domain.StatusFailed:
		return head + " FAIL " + res.ErrorCode + ": " + truncate(res.ErrorMsg, 160)
	default:
		return head + " " + strings.ToUpper(res.Status)
	}
}

func formatTemplate(eff config.EffectiveConfig) string {
	switch {
	case eff.Templating():
		return eff.Template
	case eff.Template != "":
		return "off (use_template=false)"
	default:
		return "off"
	}
}

func formatSociety(eff config.EffectiveConfig) string {
	if eff.Society != "" {
		return eff.Society
	}
	if len(eff.SocietyRules) > 0 {
		return fmt.Sprintf("auto (%d rules)", len(eff.SocietyRules))
	}
	return "off"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func boolField(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}
