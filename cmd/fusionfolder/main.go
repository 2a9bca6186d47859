package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/fusionfolder/internal/app/run"
	"github.com/John-Robertt/fusionfolder/internal/config"
	"github.com/John-Robertt/fusionfolder/internal/domain"
	"github.com/John-Robertt/fusionfolder/internal/infra/fsx"
)

// reportDirName 是 apply 时 report.json 所在目录（位于组织目录下）。
const reportDirName = ".fusionfolder"

// exitCodeError 让 RunE 把“已经输出过报告的失败”折算成退出码，而不再打印一遍错误。
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintf(os.Stderr, "参数错误：%v\n", err)
		os.Exit(2)
	}
}

type runFlags struct {
	template    string
	useTemplate bool
	dryRun      bool
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "fusionfolder",
		Short:         "按分镜清单生成镜头合成目录与 Fusion 工程文件",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr))
	return root
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "读取分镜清单，为每个镜头建立目录并（可选）生成工程文件",
		Long: `读取 <root>/META/STORYBOARD/storyboard.data，在 <root>/FUSION/<镜头>/ 下创建
镜头目录与 OUTPUT 子目录；指定模板时，为每个镜头生成 <镜头>.comp：
帧范围、输出路径与最新渲染序列的首帧都会写入。

已存在的工程文件永不覆盖。未给 root 时读取当前目录下的 fusionfolder.yaml。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				Template:       f.template,
				TemplateSet:    cmd.Flags().Changed("template"),
				UseTemplate:    f.useTemplate,
				UseTemplateSet: cmd.Flags().Changed("use-template"),
				DryRun:         f.dryRun,
			}
			if len(args) == 1 {
				cli.Root = args[0]
			}
			if code := runMain(cmd.Context(), cli, f.verbose, stdout, stderr); code != 0 {
				return exitCodeError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.template, "template", "", "合成模板路径（.comp）；为空表示只建目录")
	cmd.Flags().BoolVar(&f.useTemplate, "use-template", true, "是否生成镜头工程文件；--use-template=false 覆盖配置文件")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "只规划与解析，不做任何写入")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}

func runMain(ctx context.Context, cli config.CLIArgs, verbose bool, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(stderr, verbose)
	defer func() { _ = log.Sync() }()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		log.Error("配置无效", zap.String("error_code", config.Code(err)), zap.Error(err))
		emitReport(stdout, stderr, reportForConfigError(cwdAbs, cli, err))
		return 1
	}
	if eff.ConfigPath != "" {
		log.Debug("已读取配置文件", zap.String("path", eff.ConfigPath))
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, eff.Resolver(), log, obs)

	// apply：写入 <org>/.fusionfolder/report.json；dry-run 禁止落盘。
	// 清单/模板读取失败的 run 零写入，也不覆盖上一次的 report.json。
	wroteReport := false
	if !eff.DryRun && !rr.Aborted() {
		if err := writeReportFile(eff.OrgPath(), rr); err != nil {
			log.Error("写入 report.json 失败", zap.Error(err))
			emitReport(stdout, stderr, rr)
			return 1
		}
		wroteReport = true
	}

	emitReport(stdout, stderr, rr)
	if interactive && wroteReport {
		fmt.Fprintf(progressW, "report: %s\n", reportPath(eff.OrgPath()))
	}
	if rr.OK() {
		return 0
	}
	return 1
}

// newLogger 把结构化日志写到 stderr（stdout 留给 RunReport JSON）。
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		printSummary(stdout, rr)
		printFailures(stderr, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	printSummary(stderr, rr)
}

func printSummary(w io.Writer, rr domain.RunReport) {
	fmt.Fprintf(w, "完成：created=%d skipped=%d partial=%d failed=%d\n",
		rr.Summary.Created, rr.Summary.Skipped, rr.Summary.Partial, rr.Summary.Failed,
	)
}

func printFailures(w io.Writer, rr domain.RunReport) {
	for _, s := range rr.Shots {
		if s.Status != domain.StatusFailed && s.Status != domain.StatusPartial {
			continue
		}
		key := s.Name
		if key == "" {
			key = "<run>"
		}
		fmt.Fprintf(w, "%s %s: %s\n", key, s.ErrorCode, s.ErrorMsg)
	}
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	root := cwdAbs
	if cli.Root != "" {
		if abs, e := filepath.Abs(cli.Root); e == nil {
			root = abs
		}
	}
	rr := domain.RunReport{
		Root:       root,
		DryRun:     cli.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Shots: []domain.ShotResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func reportPath(orgPath string) string {
	return filepath.Join(orgPath, reportDirName, "report.json")
}

func writeReportFile(orgPath string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	dir := filepath.Join(orgPath, reportDirName)
	if _, err := fsx.EnsureDir(dir); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, "report.json", b)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
