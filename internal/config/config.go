package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/fusionfolder/internal/domain"
	"github.com/John-Robertt/fusionfolder/internal/render"
	"github.com/John-Robertt/fusionfolder/internal/storyboard"
)

const (
	// ErrCodeNotFound 表示未给 root 运行但 cwd 下没有 fusionfolder.yaml。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingRoot 表示未给 root 运行但配置文件缺少 root 字段。
	ErrCodeMissingRoot = domain.ErrCodeConfigMissingRoot
)

const (
	// FileName 是配置文件的固定文件名。
	FileName = "fusionfolder.yaml"
	// DefaultOrgDir 是项目根目录下的组织目录名（镜头目录都建在它下面）。
	DefaultOrgDir = "FUSION"
	// DefaultTemplateExt 是合成模板的扩展名。
	DefaultTemplateExt = ".comp"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，
// 以便 --use-template=false 能覆盖配置文件里的 use_template: true。
type CLIArgs struct {
	Root string

	Template    string
	TemplateSet bool

	UseTemplate    bool
	UseTemplateSet bool

	DryRun bool
}

// FileConfig 对应 fusionfolder.yaml 的解析结构。
type FileConfig struct {
	Root          string            `yaml:"root"`
	Template      string            `yaml:"template"`
	UseTemplate   *bool             `yaml:"use_template"`
	OrgDir        string            `yaml:"organization_dir"`
	Storyboard    string            `yaml:"storyboard"`
	TemplateExt   string            `yaml:"template_ext"`
	Society       string            `yaml:"society"`
	SocietyRules  []SocietyRule     `yaml:"society_rules"`
	OutputServers map[string]string `yaml:"output_servers"`
}

type SocietyRule struct {
	PathPrefix string `yaml:"path_prefix"`
	Society    string `yaml:"society"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Root string

	// Template 为空表示不使用模板（即使 UseTemplate=true）。
	Template    string
	UseTemplate bool
	DryRun      bool

	OrgDir      string
	Storyboard  string // 绝对路径
	TemplateExt string

	Society       string
	SocietyRules  []render.SocietyRule
	OutputServers map[string]string

	// ConfigPath 是实际读取到的配置文件；不存在时为空。
	ConfigPath string
}

// Templating 表示本次 run 是否需要生成镜头工程文件。
func (c EffectiveConfig) Templating() bool {
	return c.UseTemplate && c.Template != ""
}

// OrgPath 返回 <root>/<org>。
func (c EffectiveConfig) OrgPath() string {
	return filepath.Join(c.Root, c.OrgDir)
}

// Resolver 返回基于 society 表的渲染目录解析器。
func (c EffectiveConfig) Resolver() render.SocietyTable {
	return render.SocietyTable{
		Society: c.Society,
		Rules:   append([]render.SocietyRule(nil), c.SocietyRules...),
		Servers: c.OutputServers,
	}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingRoot:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 root", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
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

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 root：尝试读取 <root>/fusionfolder.yaml（可选）
// 2) CLI 未提供 root：必须读取 <cwd>/fusionfolder.yaml（必选），且其中必须包含 root
//
// 覆盖优先级（固定）：
// - root：CLI > config
// - template：CLI > config（CLI 相对 cwd，config 相对配置文件所在目录）
// - use_template：CLI --use-template/--use-template=false > config > 默认 true
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Root) != "" {
		root := absCleanFrom(cwdAbs, cli.Root)
		cfgPath := filepath.Join(root, FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(cwdAbs, root, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Root) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingRoot, Path: cfgPath}
	}

	root := absCleanFrom(cwdAbs, unquote(fc.Root))
	return merge(cwdAbs, root, cli, fc, cfgPath)
}

func merge(cwdAbs, root string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	useTemplate := true
	if cli.UseTemplateSet {
		useTemplate = cli.UseTemplate
	} else if fc.UseTemplate != nil {
		useTemplate = *fc.UseTemplate
	}

	template := ""
	if cli.TemplateSet {
		if t := unquote(cli.Template); t != "" {
			template = absCleanFrom(cwdAbs, t)
		}
	} else if t := unquote(fc.Template); t != "" {
		template = absCleanFrom(filepath.Dir(cfgPathOr(cfgPath, root)), t)
	}

	ext := strings.TrimSpace(fc.TemplateExt)
	if ext == "" {
		ext = DefaultTemplateExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if useTemplate && template != "" && !strings.EqualFold(filepath.Ext(template), ext) {
		return EffectiveConfig{}, invalid("模板 %q 的扩展名必须是 %s", template, ext)
	}

	orgDir := strings.TrimSpace(fc.OrgDir)
	if orgDir == "" {
		orgDir = DefaultOrgDir
	}
	if err := storyboard.CheckShotName(orgDir); err != nil {
		return EffectiveConfig{}, invalid("organization_dir %v", err)
	}

	sb := strings.TrimSpace(fc.Storyboard)
	if sb == "" {
		sb = storyboard.DefaultRelPath
	}
	sb = absCleanFrom(root, sb)

	rules := make([]render.SocietyRule, 0, len(fc.SocietyRules))
	for i, r := range fc.SocietyRules {
		if strings.TrimSpace(r.PathPrefix) == "" || strings.TrimSpace(r.Society) == "" {
			return EffectiveConfig{}, invalid("society_rules[%d] 需要同时填写 path_prefix 与 society", i)
		}
		rules = append(rules, render.SocietyRule{PathPrefix: r.PathPrefix, Society: r.Society})
	}

	servers := make(map[string]string, len(fc.OutputServers))
	keys := make([]string, 0, len(fc.OutputServers))
	for k := range fc.OutputServers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := unquote(fc.OutputServers[k])
		if strings.TrimSpace(k) == "" || v == "" {
			return EffectiveConfig{}, invalid("output_servers 存在空的 society 或服务器路径：%q", k)
		}
		servers[strings.TrimSpace(k)] = v
	}

	return EffectiveConfig{
		Root:          root,
		Template:      template,
		UseTemplate:   useTemplate,
		DryRun:        cli.DryRun,
		OrgDir:        orgDir,
		Storyboard:    sb,
		TemplateExt:   ext,
		Society:       strings.TrimSpace(fc.Society),
		SocietyRules:  rules,
		OutputServers: servers,
		ConfigPath:    cfgPath,
	}, nil
}

func cfgPathOr(cfgPath, root string) string {
	if cfgPath != "" {
		return cfgPath
	}
	return filepath.Join(root, FileName)
}

// unquote 去掉首尾空白与双引号（从资源管理器“复制为路径”粘贴过来的值自带引号）。
func unquote(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
