package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/BaSui01/structstream/internal/migration"
)

// =============================================================================
// Failure Archive Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) error {
	if len(args) < 1 {
		printMigrateUsage()
		return errors.New("missing migrate subcommand")
	}

	subcommand := args[0]
	if subcommand == "help" || subcommand == "-h" || subcommand == "--help" {
		printMigrateUsage()
		return nil
	}
	switch subcommand {
	case "up", "down", "status", "version", "force":
	default:
		printMigrateUsage()
		return fmt.Errorf("unknown migrate subcommand: %s", subcommand)
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	driver := fs.String("driver", "", "Database driver override (postgres, mysql, sqlite)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.Archive.Driver = *driver
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	migrator, err := migration.NewMigrator(cfg.Archive, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	return runMigrateSubcommand(context.Background(), migrator, os.Stdout, subcommand, fs.Args())
}

// runMigrateSubcommand 在已创建的 migrator 上执行子命令。
func runMigrateSubcommand(ctx context.Context, migrator migration.Migrator, out io.Writer, subcommand string, args []string) error {
	cli := migration.NewCLI(migrator)
	cli.SetOutput(out)

	switch subcommand {
	case "up":
		return cli.RunUp(ctx)
	case "down":
		return cli.RunDown(ctx)
	case "status":
		return cli.RunStatus(ctx)
	case "version":
		return cli.RunVersion(ctx)
	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version argument")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return cli.RunForce(ctx, version)
	}
	return fmt.Errorf("unknown migrate subcommand: %s", subcommand)
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Failure Archive Migration Commands

Usage:
  structstream migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  force     Force set migration version (use with caution)
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --driver <type>     Database driver: postgres, mysql, sqlite (default: from config)

Examples:
  structstream migrate up
  structstream migrate up --config /etc/structstream/config.yaml
  structstream migrate down --driver sqlite
  structstream migrate status
  structstream migrate force 1`)
}
