package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"gitlab.com/dirk.krummacker/beetagged/internal/config"
	"gitlab.com/dirk.krummacker/beetagged/internal/store"
	pkgconfig "gitlab.com/dirk.krummacker/beetagged/pkg/config"
)

// Usage examples on the command line:
// > STORE_DSN="dirk:secret@tcp(localhost:3306)/contacts" go run main.go --config ../../config/mysql.yaml
// > STORE_DSN="dirk:secret@tcp(localhost:3306)/contacts" go run main.go --config ../../config/mysql.yaml --file=patch.sql
func main() {
	cmd := &cli.Command{
		Name:   "migration",
		Usage:  "Creates the contacts table of the configured SQL store, or executes a SQL file",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "SQL file to execute instead of the built-in schema",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.Store.Driver {
	case store.DriverMemory:
		slog.Info("the memory store needs no migration")
		return nil
	case store.DriverMongoDB:
		// Opening the store creates its indexes.
		s, err := store.Open(ctx, cfg.Store.Options())
		if err != nil {
			return err
		}
		slog.Info("indexes created", slog.String("database", cfg.Store.Database))
		return s.Close()
	}

	db, err := sqlx.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if file := cmd.String("file"); file != "" {
		return executeFile(ctx, db, file)
	}
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	slog.Info("schema created", slog.String("driver", cfg.Store.Driver))
	return nil
}

// executeFile executes the statements of a SQL file one by one. A statement ends with the line
// that contains its semicolon.
func executeFile(ctx context.Context, db *sqlx.DB, filename string) error {
	readFile, err := os.Open(filename) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()

	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	executed := 0
	for fileScanner.Scan() {
		line := fileScanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return fmt.Errorf("statement %d: %w", executed+1, err)
			}
			executed++
			builder = strings.Builder{}
		}
	}
	if err := fileScanner.Err(); err != nil {
		return err
	}
	slog.Info("file executed", slog.String("file", filename), slog.Int("statements", executed))
	return nil
}
