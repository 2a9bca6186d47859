package render

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNoSociety 表示无法为项目确定输出 society。
	ErrNoSociety = errors.New("无法确定项目的输出 society")
	// ErrNoServer 表示 society 在 output_servers 中没有映射。
	ErrNoServer = errors.New("output society 未映射到服务器根目录")
)

// FilmDirName 是服务器上存放镜头渲染结果的固定目录名。
const FilmDirName = "FILM"

// Resolver 把（项目根目录, 镜头名）解析为该镜头的渲染根目录。
// 解析失败意味着“没有可用的输入序列”，调用方不应因此中止整个 run。
type Resolver interface {
	RenderRoot(projectRoot, shot string) (string, error)
}

// SocietyRule 按项目路径前缀选择 society。
type SocietyRule struct {
	PathPrefix string
	Society    string
}

// SocietyTable 是基于配置的 Resolver：
// society 优先取显式 Society，否则取 Rules 中最长匹配的前缀；
// 再经 Servers 映射到服务器根目录，最终得到 <server>/<项目名>/FILM/<shot>。
type SocietyTable struct {
	Society string
	Rules   []SocietyRule
	Servers map[string]string
}

var _ Resolver = SocietyTable{}

// SocietyFor 返回项目所属的输出 society。
func (t SocietyTable) SocietyFor(projectRoot string) (string, error) {
	if s := strings.TrimSpace(t.Society); s != "" {
		return s, nil
	}

	root := normPrefix(projectRoot)
	best, bestLen := "", -1
	for _, r := range t.Rules {
		p := normPrefix(r.PathPrefix)
		if p == "" || !hasPathPrefix(root, p) {
			continue
		}
		if len(p) > bestLen {
			best, bestLen = strings.TrimSpace(r.Society), len(p)
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w：%q", ErrNoSociety, projectRoot)
	}
	return best, nil
}

func (t SocietyTable) RenderRoot(projectRoot, shot string) (string, error) {
	society, err := t.SocietyFor(projectRoot)
	if err != nil {
		return "", err
	}
	server := strings.TrimSpace(t.Servers[society])
	if server == "" {
		return "", fmt.Errorf("%w：%q", ErrNoServer, society)
	}
	project := filepath.Base(filepath.Clean(projectRoot))
	return filepath.Join(server, project, FilmDirName, shot), nil
}

// normPrefix 统一为小写 + 正斜杠 + 去掉结尾斜杠（项目路径多数来自 Windows 盘符/UNC）。
func normPrefix(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimRight(p, "/")
}

func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
