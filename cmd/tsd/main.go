package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"bts-lite/api"
	"bts-lite/treestore"
)

const (
	AppName    = "tsd"
	AppVersion = "1.0.0"
)

func main() {
	app := &cli.App{
		Name:    AppName,
		Usage:   "Binary tree store server",
		Version: AppVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"TSD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Listen host",
				EnvVars: []string{"TSD_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
				EnvVars: []string{"TSD_PORT"},
			},
			&cli.StringFlag{
				Name:    "unix-socket",
				Usage:   "Serve on a unix socket instead of TCP",
				EnvVars: []string{"TSD_UNIX_SOCKET"},
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Require this bearer token on every request",
				EnvVars: []string{"TSD_AUTH_TOKEN"},
			},
			&cli.BoolFlag{
				Name:  "no-metrics",
				Usage: "Disable the prometheus /metrics endpoint",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	config := api.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := api.LoadConfig(path)
		if err != nil {
			return err
		}
		config = loaded
	}

	// Flags override the config file.
	if c.IsSet("host") {
		config.Host = c.String("host")
	}
	if c.IsSet("port") {
		config.Port = c.Int("port")
	}
	if c.IsSet("unix-socket") {
		config.UnixSocket = c.String("unix-socket")
	}
	if c.IsSet("auth-token") {
		config.EnableAuth = true
		config.AuthToken = c.String("auth-token")
	}
	if c.Bool("no-metrics") {
		config.EnableMetrics = false
	}

	store := treestore.New()
	defer store.Close()

	server := api.NewAPIServer(store, config)
	return server.Start(context.Background())
}
