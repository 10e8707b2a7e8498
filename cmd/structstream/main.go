// =============================================================================
// StructStream 命令行入口
// =============================================================================
// 离线回放片段流、查看事件日志、管理失败归档的数据库迁移
//
// 使用方法:
//
//	structstream replay --input fragments.jsonl            # 回放片段流
//	structstream replay --input f.jsonl --schema s.json    # 指定 JSON Schema
//	structstream events --request <id>                     # 打印某次请求的事件
//	structstream tail                                      # 实时跟随事件
//	structstream migrate up                                # 运行归档迁移
//	structstream version                                   # 显示版本信息
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/structstream/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "replay":
		err = runReplay(os.Args[2:])
	case "events":
		err = runEvents(os.Args[2:])
	case "tail":
		err = runTail(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "structstream %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// loadConfig 按 默认值 -> YAML -> 环境变量 的顺序加载配置。
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("StructStream %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`StructStream - typed values from streaming model output

Usage:
  structstream <command> [options]

Commands:
  replay    Replay a recorded fragment stream through the pipeline
  events    Print the event log of one request
  tail      Follow live events published to Redis
  migrate   Failure archive migration commands
  version   Show version information
  help      Show this help message

Options for 'replay':
  --config <path>        Path to configuration file (YAML)
  --input <path>         JSONL file of fragments ("-" for stdin)
  --schema <path>        JSON Schema the final value must satisfy
  --mode <mode>          content | tools (default: from config)
  --tool <name>          Tool name used in tools mode (default: any tool)
  --aggregation <mode>   latest_only | keep_all (default: from config)
  --request <id>         Fixed request id

Options for 'events':
  --config <path>        Path to configuration file (YAML)
  --request <id>         Request id to print

Migration subcommands:
  migrate up             Apply all pending migrations
  migrate down           Rollback the last migration
  migrate status         Show migration status
  migrate version        Show current migration version
  migrate force <v>      Force set migration version

Examples:
  structstream replay --input testdata/person.jsonl
  structstream replay --input - --mode tools --tool person < stream.jsonl
  structstream events --request 6f1c0b9e-...
  structstream migrate up --config /etc/structstream/config.yaml
  structstream version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
