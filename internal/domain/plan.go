package domain

// ShotPlan 描述某个镜头在磁盘上需要补齐的内容（只描述，不执行任何写入）。
type ShotPlan struct {
	Shot Shot

	ShotDir      string
	OutputDir    string
	DocumentPath string // 未启用模板时为空

	NeedShotDir   bool
	NeedOutputDir bool

	// DocumentExists 为 true 时，该镜头的工程文件必须跳过（绝不覆盖）。
	DocumentExists bool
}
