// Package main 是 svcboot 架构检查工具的入口点
//
// archcheck 对指定的源码树运行架构约束规则，并把违规报告
// 写入输出目录。有违规时退出码为 1，检查本身失败时为 2。
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/younghedong/svcboot/internal/arch"
	"github.com/younghedong/svcboot/internal/config"
	"github.com/younghedong/svcboot/internal/log"
)

// 版本信息 (由编译时注入)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 命令行参数，显式传入时覆盖配置文件
var (
	configPath   = flag.String("config", ".archcheck.yaml", "配置文件路径")
	outputDir    = flag.String("output", "", "报告输出目录")
	resourcesDir = flag.String("resources", "", "随构建发布的资源目录")
	modulePath   = flag.String("module", "", "模块导入路径，默认从 go.mod 推断")
	prohibitExit = flag.Bool("prohibit-direct-exit", true, "禁止库代码直接退出进程")
	listRules    = flag.Bool("list-rules", false, "以 YAML 输出全部规则并退出")
	showVer      = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Parse()

	// 显示版本
	if *showVer {
		fmt.Printf("svcboot archcheck %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	// 加载配置，文件不存在时使用默认值
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	// 命令行参数优先于配置文件
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["output"] {
		cfg.Check.OutputDir = *outputDir
	}
	if set["resources"] {
		cfg.Check.ResourcesDir = *resourcesDir
	}
	if set["prohibit-direct-exit"] {
		cfg.Check.ProhibitDirectExit = *prohibitExit
	}

	module := *modulePath
	if module == "" {
		module = cfg.Module.Imports
	}

	// 列出规则
	if *listRules {
		docs := arch.Docs(arch.RuleOptions{ProhibitDirectExit: cfg.Check.ProhibitDirectExit})
		out, err := yaml.Marshal(docs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render rules: %v\n", err)
			os.Exit(2)
		}
		fmt.Print(string(out))
		os.Exit(0)
	}

	// 初始化日志，命令行工具只输出到控制台
	if err := log.Init(log.Config{
		Level:  cfg.Log.Level,
		Output: "console",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(2)
	}

	logger := log.Global()
	defer logger.Sync()

	roots := flag.Args()
	if len(roots) == 0 {
		roots = []string{"."}
	}

	result, err := arch.Run(arch.Options{
		Roots:              roots,
		Module:             module,
		SkipDirs:           cfg.Check.SkipDirs,
		ResourcesDir:       cfg.Check.ResourcesDir,
		OutputDir:          cfg.Check.OutputDir,
		ProhibitDirectExit: cfg.Check.ProhibitDirectExit,
		Logger:             logger.WithModule("archcheck").Zap(),
	})
	if err != nil {
		if errors.Is(err, arch.ErrViolations) {
			logger.Error("Architecture check failed",
				zap.Int("violated_rules", len(result.Violated)),
				zap.Error(err),
			)
			os.Exit(1)
		}
		logger.Error("Architecture check aborted", zap.Error(err))
		os.Exit(2)
	}

	logger.Info("Architecture check passed",
		zap.Int("rules", result.Evaluated),
		zap.String("report", result.ReportPath),
	)
}
