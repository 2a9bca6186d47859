package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/fusionfolder/internal/domain"
)

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func execCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)

	code := 0
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		var ec exitCodeError
		if !errors.As(err, &ec) {
			t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr.String())
		}
		code = ec.code
	}
	return code, stdout.String(), stderr.String()
}

func newProject(t *testing.T) (root, template string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "MOVIE_A")
	writeTestFile(t, filepath.Join(root, "META", "STORYBOARD", "storyboard.data"),
		`{"Shots": [{"Name": "SH010", "FrameInterval": "1001-1050"}]}`)
	template = filepath.Join(base, "TEMPLATE.comp")
	writeTestFile(t, template, "RenderRange = {0, 1},\nFilename = \"<replace_me_with_output>\",\n")
	return root, template
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root, template := newProject(t)

	code, stdout, stderr := execCLI(t, "run", root, "--template", template)
	if code != 0 {
		t.Fatalf("退出码应为 0，实际 %d\nstderr=%s", code, stderr)
	}

	var rr domain.RunReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout)
	}
	if len(rr.Shots) != 1 || rr.Shots[0].Name != "SH010" || rr.Shots[0].Status == domain.StatusFailed {
		t.Fatalf("RunReport 不符合预期：%+v", rr)
	}
	if strings.Contains(stdout, "配置（生效）") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout)
	}
	if !strings.Contains(stderr, "完成：created=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr)
	}

	doc, err := os.ReadFile(filepath.Join(root, "FUSION", "SH010", "SH010.comp"))
	if err != nil {
		t.Fatalf("工程文件未生成：%v", err)
	}
	if !strings.Contains(string(doc), "RenderRange = {1001, 1050}") {
		t.Fatalf("工程文件帧范围未改写：%s", doc)
	}
	if _, err := os.Stat(filepath.Join(root, "FUSION", ".fusionfolder", "report.json")); err != nil {
		t.Fatalf("apply 应写入 report.json：%v", err)
	}
}

func TestCLI_DryRunWritesNothing(t *testing.T) {
	root, template := newProject(t)

	code, stdout, _ := execCLI(t, "run", root, "--template", template, "--dry-run")
	if code != 0 {
		t.Fatalf("退出码应为 0，实际 %d", code)
	}
	if !strings.Contains(stdout, `"dry_run":true`) {
		t.Fatalf("stdout 应标记 dry_run：%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(root, "FUSION")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建组织目录：%v", err)
	}
}

func TestCLI_MissingManifestExitsNonZeroWithoutWrites(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MOVIE_B")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	code, stdout, _ := execCLI(t, "run", root, "--use-template=false")
	if code != 1 {
		t.Fatalf("退出码应为 1，实际 %d", code)
	}
	var rr domain.RunReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v", err)
	}
	if len(rr.Shots) != 1 || rr.Shots[0].ErrorCode != domain.ErrCodeManifestNotFound {
		t.Fatalf("期望 manifest_not_found：%+v", rr.Shots)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("读取目录失败：%v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("清单缺失时不应有任何写入：%v", entries)
	}
}

func TestCLI_FailedManifestKeepsPreviousReport(t *testing.T) {
	root, template := newProject(t)

	if code, _, stderr := execCLI(t, "run", root, "--template", template); code != 0 {
		t.Fatalf("第一次 run 退出码应为 0，实际 %d\nstderr=%s", code, stderr)
	}
	reportFile := filepath.Join(root, "FUSION", ".fusionfolder", "report.json")
	want, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("第一次 run 应写入 report.json：%v", err)
	}
	writeTestFile(t, filepath.Join(root, "META", "STORYBOARD", "storyboard.data"), `{"Shots":[{"Name":"SH010"}]}`)
	before := listFiles(t, root)

	code, stdout, _ := execCLI(t, "run", root, "--template", template)
	if code != 1 {
		t.Fatalf("清单无效时退出码应为 1，实际 %d", code)
	}
	if !strings.Contains(stdout, domain.ErrCodeManifestMalformed) {
		t.Fatalf("stdout 应包含 manifest_malformed：%s", stdout)
	}
	got, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("读取 report.json 失败：%v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("清单无效的 run 不应改写 report.json：\n%s", got)
	}
	if after := listFiles(t, root); strings.Join(after, "\n") != strings.Join(before, "\n") {
		t.Fatalf("清单无效的 run 不应有任何写入：before=%v after=%v", before, after)
	}
}

// listFiles 返回 root 下全部路径（相对），用于断言“零写入”。
func listFiles(t *testing.T, root string) []string {
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

func TestCLI_TooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"run", "a", "b"})
	err := cmd.Execute()
	var ec exitCodeError
	if err == nil || errors.As(err, &ec) {
		t.Fatalf("多余的位置参数应返回参数错误，实际 %v", err)
	}
}
