package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// Usage example on the command line:
// > go run main.go --url http://localhost:8080/health --timeout 2m
func main() {
	cmd := &cli.Command{
		Name:  "wait-until-available",
		Usage: "Waits until the contacts service reports that its store is reachable",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080/health",
				Sources: cli.EnvVars("HEALTH_URL"),
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 5 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up after this duration, 0 waits forever",
			},
		},
		Action: wait,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func wait(ctx context.Context, cmd *cli.Command) error {
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	interval := cmd.Duration("interval")
	var totalWaitTime time.Duration
	for {
		status, err := check(ctx, cmd.String("url"))
		if err == nil && status == http.StatusOK {
			fmt.Println("service is available")
			return nil
		}
		if err != nil {
			fmt.Println(err)
		} else {
			fmt.Println("service responded with status", status)
		}
		totalWaitTime += interval
		fmt.Printf("Waiting %s\n", totalWaitTime)
		select {
		case <-ctx.Done():
			return fmt.Errorf("service not available: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func check(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode, nil
}
