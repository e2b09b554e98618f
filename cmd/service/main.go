package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"gitlab.com/dirk.krummacker/beetagged/internal/config"
	"gitlab.com/dirk.krummacker/beetagged/internal/service"
	pkgconfig "gitlab.com/dirk.krummacker/beetagged/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := service.Run(ctx, cfg); err != nil {
		return fmt.Errorf("service error: %w", err)
	}
	return nil
}

// Usage example on the command line:
// > LOG_LEVEL=debug GIN_LOGGING=off go run main.go --config ../../config/config.yaml
func main() {
	cmd := &cli.Command{
		Name:   "beetagged",
		Usage:  "Contact import and search service for LinkedIn and Facebook contacts",
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
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
