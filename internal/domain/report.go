package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusCreated = "created"
	StatusSkipped = "skipped"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

const (
	ErrCodeManifestNotFound     = "manifest_not_found"
	ErrCodeManifestMalformed    = "manifest_malformed"
	ErrCodeTemplateUnreadable   = "template_unreadable"
	ErrCodeFrameIntervalInvalid = "frame_interval_invalid"
	ErrCodeRenderUnresolved     = "render_unresolved"
	ErrCodeRenderNotFound       = "render_not_found"
	ErrCodeTargetConflict       = "target_conflict"
	ErrCodeIOFailed             = "io_failed"
	ErrCodeCancelled            = "cancelled"
	ErrCodeConfigNotFound       = "config_not_found"
	ErrCodeConfigInvalid        = "config_invalid"
	ErrCodeConfigMissingRoot    = "config_missing_root"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Root   string `json:"root"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Shots   []ShotResult  `json:"shots"`
}

type ReportSummary struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
}

// ShotResult 是单个镜头的处理结果。Name 为空表示 run 级别的合成条目（例如清单读取失败）。
type ShotResult struct {
	Name          string `json:"name"`
	FrameInterval string `json:"frame_interval"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Document   string `json:"document"`
	RenderRoot string `json:"render_root"`
	Input      string `json:"input"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 shots 计算得出
//
// shots 保持清单顺序，不重新排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Shots == nil {
		r.Shots = []ShotResult{}
	}

	var s ReportSummary
	for _, it := range r.Shots {
		switch it.Status {
		case StatusCreated:
			s.Created++
		case StatusSkipped:
			s.Skipped++
		case StatusPartial:
			s.Partial++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// OK 表示本次 run 没有失败条目（partial 不算失败：输入未找到是预期内的降级）。
func (r RunReport) OK() bool {
	return r.Summary.Failed == 0
}

// Aborted 表示 run 在处理任何镜头之前就中止了（清单/模板/组织目录失败）。
// 这类 run 不产生任何写入，report.json 也不例外。取消不算中止：取消前的镜头已经落盘。
func (r RunReport) Aborted() bool {
	for _, it := range r.Shots {
		if it.Name == "" && it.Status == StatusFailed && it.ErrorCode != ErrCodeCancelled {
			return true
		}
	}
	return false
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
