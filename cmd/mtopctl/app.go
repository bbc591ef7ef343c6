package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"aliscan/pkg/config"
	"aliscan/pkg/logger"
)

const DESCRIPTION = `mtopctl keeps a real Chrome session alive for the AliExpress storefront,
signs h5 gateway (MTOP) calls with its token cookie and replays them over a
browser-like TLS client. Proxy credentials are read from OXYLABS_USERNAME,
OXYLABS_PASSWORD and OXYLABS_ENDPOINT, optionally via a .env file.`

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "config file (.yaml, .yml or .json)",
		EnvVar: "MTOPCTL_CONFIG",
	},
	cli.StringFlag{
		Name:  "cookies-file",
		Usage: "session cookie file, overrides session.cookies_file",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
	},
	cli.BoolFlag{
		Name:  "proxy",
		Usage: "route browser and requests through the Oxylabs proxy",
	},
	cli.BoolFlag{
		Name:  "no-proxy",
		Usage: "disable the proxy even when credentials are present",
	},
	cli.BoolFlag{
		Name:  "headful",
		Usage: "show the Chrome window",
	},
	cli.StringFlag{
		Name:  "transport",
		Usage: "tls (browser fingerprint) or http (net/http)",
	},
}

// Execute runs the CLI with the given argv.
func Execute(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "mtopctl",
		HelpName:    "mtopctl",
		Usage:       "AliExpress MTOP session client",
		UsageText:   "mtopctl [global options] <command> [arguments...]",
		Version:     version,
		Description: DESCRIPTION,
		Flags:       globalFlags,
		Commands: []cli.Command{
			{
				Name:      "fetch",
				Aliases:   []string{"f"},
				Usage:     "fetch one product by id or item URL",
				ArgsUsage: "<product id or URL>",
				Action:    fetchAction,
				Flags:     fetchFlags,
			},
			{
				Name:      "batch",
				Aliases:   []string{"b"},
				Usage:     "fetch several products sequentially",
				ArgsUsage: "[id or URL...]",
				Action:    batchAction,
				Flags:     batchFlags,
			},
			{
				Name:   "cookies",
				Usage:  "start a session and print its cookies",
				Action: cookiesAction,
				Flags:  cookiesFlags,
			},
			{
				Name:   "sign",
				Usage:  "compute an MTOP signature offline",
				Action: signAction,
				Flags:  signFlags,
			},
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
				Flags:  serveFlags,
			},
		},
	}
}

// loadConfig reads .env, the config file and global flag overrides, then
// initialises the logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(c, cfg)

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	dev := cfg.App.Environment != "production"
	if err := logger.InitLogger(dev, cfg.App.LogFile, cfg.App.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func applyGlobalFlags(c *cli.Context, cfg *config.Config) {
	if v := c.GlobalString("cookies-file"); v != "" {
		cfg.Session.CookiesFile = v
	}
	if v := c.GlobalString("log-level"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := c.GlobalString("transport"); v != "" {
		cfg.API.Transport = v
	}
	if c.GlobalBool("proxy") {
		cfg.Proxy.Enabled = true
	}
	if c.GlobalBool("no-proxy") {
		cfg.Proxy.Enabled = false
	}
	if c.GlobalBool("headful") {
		cfg.Browser.Headless = false
	}
}
