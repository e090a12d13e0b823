package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/slpsort/internal/app/run"
	"github.com/John-Robertt/slpsort/internal/config"
	"github.com/John-Robertt/slpsort/internal/domain"
	"github.com/John-Robertt/slpsort/internal/infra/fsx"
	"github.com/John-Robertt/slpsort/internal/infra/lockx"
	"github.com/John-Robertt/slpsort/internal/infra/logx"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// exitError 携带进程退出码；cobra 自身返回的错误（未知参数等）都按用法错误处理。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

type rootFlags struct {
	config   string
	dryRun   bool
	pause    bool
	report   string
	logFile  string
	logLevel string
}

// execute 运行 CLI 并返回退出码；main 之外的测试直接调用它。
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(streams{in: stdin, out: stdout, err: stderr})
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(stderr, cmd.UsageString())
	return exitUsage
}

func newRootCommand(s streams) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "slpsort [path]",
		Short: "把 CPU 对局与热身局（handwarmers）从 Slippi 回放目录中分拣出来",
		Long: `递归扫描 path（默认当前目录）下的 .slp 回放：
  - 含 CPU 玩家的对局移入 <path>/@cpu_games/
  - 总伤害低于 100 的对局移入 <path>/@handwarmers/
  - 其余保留原位

stdout 是终端时输出汇总表格；否则只输出一个 RunReport JSON。过程信息写到 stderr。`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runSort(cmd.Context(), s, config.CLIArgs{
				Path:       path,
				ConfigPath: f.config,
				DryRun:     f.dryRun,
				DryRunSet:  cmd.Flags().Changed("dry-run"),
				Pause:      f.pause,
				PauseSet:   cmd.Flags().Changed("pause"),
				LogFile:    f.logFile,
				LogLevel:   f.logLevel,
			}, f.report)
		},
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)

	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "配置文件路径（默认读取 <path>/slpsort.toml，若存在）")
	flags.BoolVar(&f.dryRun, "dry-run", false, "只分类并输出报告，不创建目录、不移动文件")
	flags.BoolVar(&f.pause, "pause", false, "结束后等待回车再退出")
	flags.StringVar(&f.report, "report", "", "额外把 JSON 报告原子写入该文件")
	flags.StringVar(&f.logFile, "log-file", "", "诊断日志额外以 JSON 追加写入该文件")
	flags.StringVar(&f.logLevel, "log-level", "", "诊断日志级别：debug|info|warn|error（默认 warn）")

	return cmd
}

func runSort(ctx context.Context, s streams, cli config.CLIArgs, reportPath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("读取当前目录失败：%w", err)}
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		emitReport(s.out, s.err, fatalReport(cwd, cli.DryRunSet && cli.DryRun, config.Code(err), err))
		return &exitError{code: exitFatal, err: err}
	}

	logger, closeLog, err := logx.Setup(logx.Options{Level: eff.LogLevel, File: eff.LogFile, Stderr: s.err})
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer closeLog()

	lock, err := lockx.Acquire(eff.Path)
	if err != nil {
		emitReport(s.out, s.err, fatalReport(eff.Path, eff.DryRun, domain.ErrCodeLocked, err))
		return &exitError{code: exitFatal, err: err}
	}
	defer lock.Release()
	logger.Debug("已获取目录锁", "lock", lock.Path)

	if ctx == nil {
		ctx = context.Background()
	}
	// Ctrl+C 只在文件之间生效：当前文件的移动要么完成，要么没有发生。
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	rr := run.ExecuteWithOptions(ctx, eff, run.Options{
		Observer: newConsole(s.err),
		Logger:   logger,
	})

	code := exitOK
	if reportPath != "" {
		if err := writeReportFile(reportPath, rr); err != nil {
			fmt.Fprintf(s.err, "写入报告失败：%v\n", err)
			code = exitFatal
		}
	}

	emitReport(s.out, s.err, rr)

	if eff.Pause {
		waitForEnter(s.in, s.err)
	}

	if rr.Fatal() {
		code = exitFatal
	}
	if code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

// fatalReport 为尚未进入逐文件处理就失败的运行构造报告（src=="" 的合成条目）。
func fatalReport(path string, dryRun bool, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       path,
		DryRun:     dryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := marshalReport(rr)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := fsx.EnsureDir(dir); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, filepath.Base(abs), b)
}

func waitForEnter(in io.Reader, w io.Writer) {
	if in == nil {
		return
	}
	fmt.Fprint(w, "Press Enter to continue...")
	_, _ = bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(w)
}
