package run

import (
	"time"

	"github.com/John-Robertt/fusionfolder/internal/config"
	"github.com/John-Robertt/fusionfolder/internal/domain"
)

// Observer 用于把“运行进度/阶段/镜头结果”从核心执行流程中解耦出来。
//
// run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// 事件在执行 goroutine 上同步触发。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（manifest / prepare / shots）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnShotDone 在某个镜头处理完成时调用（idx 从 1 开始）。
	OnShotDone(idx, total int, res domain.ShotResult, dur time.Duration)
}
