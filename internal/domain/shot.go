package domain

// Shot 是分镜清单中的一条镜头记录（只读，生命周期 = 一次 run）。
//
// 不变量：
// - Name 非空、在清单内唯一，且可直接作为单个路径段使用
// - FrameInterval 原样保留（形如 "1001-1050"），读取阶段不校验语法
type Shot struct {
	Name          string
	FrameInterval string
}
