package run

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/fusionfolder/internal/config"
	"github.com/John-Robertt/fusionfolder/internal/render"
)

const testTemplate = `Composition {
	CurrentTime = 1042,
	RenderRange = { 0, 1000, },
	GlobalRange = { 0, 1000, },
	Tools = ordered() {
		Loader1 = Loader { Clips = { Clip { Filename = "<replace_me_with_input>", }, }, },
		Saver1 = Saver { Inputs = { Clip = Input { Value = Clip { Filename = "<replace_me_with_output>", }, }, }, },
	},
}
`

type fixture struct {
	root     string
	server   string
	template string
}

// newFixture 准备一个项目根目录（MOVIE_A）、一个渲染服务器目录和一个模板。
func newFixture(t *testing.T, manifest string) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{
		root:     filepath.Join(base, "prod", "MOVIE_A"),
		server:   filepath.Join(base, "render"),
		template: filepath.Join(base, "templates", "TEMPLATE_FUSION_18_v1.comp"),
	}
	if manifest != "" {
		writeFile(t, filepath.Join(f.root, "META", "STORYBOARD", "storyboard.data"), manifest)
	} else if err := os.MkdirAll(f.root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, f.template, testTemplate)
	return f
}

func (f fixture) eff() config.EffectiveConfig {
	return config.EffectiveConfig{
		Root:        f.root,
		Template:    f.template,
		UseTemplate: true,
		OrgDir:      "FUSION",
		Storyboard:  filepath.Join(f.root, "META", "STORYBOARD", "storyboard.data"),
		TemplateExt: ".comp",
	}
}

func (f fixture) resolver() render.SocietyTable {
	return render.SocietyTable{Society: "asy", Servers: map[string]string{"asy": f.server}}
}

// addRender 在 <server>/MOVIE_A/FILM/<shot>/<version>/ 下放置序列帧，并设置版本目录的 mtime。
func (f fixture) addRender(t *testing.T, shot, version string, mtime time.Time, frames ...string) string {
	t.Helper()
	dir := filepath.Join(f.server, "MOVIE_A", "FILM", shot, version)
	for _, fr := range frames {
		writeFile(t, filepath.Join(dir, fr), "exr")
	}
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatalf("设置 mtime 失败：%v", err)
	}
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	return string(b)
}

// listTree 返回 root 下全部路径（相对、排序后），用于断言“零写入”。
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out = append(out, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("遍历目录失败：%v", err)
	}
	return out
}
