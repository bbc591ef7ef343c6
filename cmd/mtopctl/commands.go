package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"aliscan/pkg/aliexpress"
	"aliscan/pkg/handlers"
	"aliscan/pkg/keepalive"
	"aliscan/pkg/logger"
	"aliscan/pkg/mtop"
	"aliscan/pkg/server"
)

var (
	fetchFlags = []cli.Flag{
		cli.BoolFlag{Name: "result-only, r", Usage: "print only data.result"},
	}
	batchFlags = []cli.Flag{
		cli.StringFlag{Name: "input-file, i", Usage: "file with one id or URL per line"},
		cli.StringFlag{Name: "output, o", Usage: "write the JSON report here instead of stdout"},
	}
	cookiesFlags = []cli.Flag{
		cli.BoolFlag{Name: "header", Usage: "print a Cookie header instead of JSON"},
	}
	signFlags = []cli.Flag{
		cli.StringFlag{Name: "token", Usage: "token part of _m_h5_tk"},
		cli.StringFlag{Name: "cookie", Usage: "raw Cookie header to take the token from"},
		cli.StringFlag{Name: "data", Usage: "JSON payload exactly as sent"},
		cli.StringFlag{Name: "product", Usage: "build the product query payload for this id"},
		cli.Int64Flag{Name: "t", Usage: "timestamp in ms, defaults to now"},
		cli.StringFlag{Name: "app-key", Value: mtop.DefaultAppKey},
	}
	serveFlags = []cli.Flag{
		cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.address"},
		cli.IntFlag{Name: "port, p", Usage: "listen port, overrides server.port"},
		cli.BoolFlag{Name: "keepalive", Usage: "enable the keep-alive job"},
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func fetchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("fetch takes exactly one product id or URL", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := rt.client.FetchProduct(ctx, c.Args().First())
	if err != nil {
		var clientErr *aliexpress.Error
		if errors.As(err, &clientErr) && clientErr.Response != nil {
			_ = writeJSON(c.App.Writer, clientErr.Response)
		}
		return err
	}
	if c.Bool("result-only") {
		return writeJSON(c.App.Writer, resp.Result())
	}
	return writeJSON(c.App.Writer, resp)
}

type batchReport struct {
	Summary aliexpress.BatchSummary  `json:"summary"`
	Results []aliexpress.BatchResult `json:"results"`
}

func batchAction(c *cli.Context) error {
	inputs, err := collectInputs(c.Args(), c.String("input-file"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	results, summary := rt.client.FetchProducts(ctx, inputs)
	report := batchReport{Summary: summary, Results: results}

	out := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeJSON(out, report); err != nil {
		return err
	}

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	fmt.Fprintf(errOut, "%d/%d succeeded in %s\n",
		summary.Succeeded, summary.Total, summary.Elapsed.Round(time.Millisecond))
	if summary.Failed > 0 {
		return cli.NewExitError("", 1)
	}
	return nil
}

func cookiesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := rt.ctrl.Start(ctx); err != nil {
		return err
	}
	if err := rt.client.SaveSessionCookies(ctx); err != nil {
		logger.Warn("Could not save session cookies", zap.Error(err))
	}

	cookies := rt.client.CookiesForRequests(ctx)
	if c.Bool("header") {
		set, err := rt.ctrl.ExtractCookies(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, set.Header())
		return err
	}
	return writeJSON(c.App.Writer, cookies)
}

func signAction(c *cli.Context) error {
	token := c.String("token")
	if token == "" && c.String("cookie") != "" {
		t, err := mtop.ExtractToken(mtop.ParseCookieHeader(c.String("cookie")))
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		token = t.Token
	}
	if token == "" {
		return cli.NewExitError("sign needs --token or --cookie", 2)
	}

	var payload interface{} = c.String("data")
	if id := c.String("product"); id != "" {
		pid, err := aliexpress.ParseProductID(id)
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		p, err := aliexpress.ProductPayload(pid, aliexpress.DefaultLocale(), "")
		if err != nil {
			return err
		}
		payload = p
	}

	now := time.Now()
	if ms := c.Int64("t"); ms > 0 {
		now = time.UnixMilli(ms)
	}

	req, err := mtop.NewSignedRequest(token, c.String("app-key"), payload, now)
	if err != nil {
		return err
	}

	endpoint := aliexpress.DefaultOptions().Endpoint
	endpoint.API = aliexpress.ProductAPI
	endpoint.Version = aliexpress.ProductVersion
	return writeJSON(c.App.Writer, map[string]string{
		"t":    req.Timestamp,
		"sign": req.Signature,
		"data": req.Payload,
		"url":  endpoint.URL(req),
	})
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		cfg.Server.Address = v
	}
	if v := c.Int("port"); v > 0 {
		cfg.Server.Port = v
	}
	if c.Bool("keepalive") {
		cfg.KeepAlive.Enabled = true
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	var ka *keepalive.Scheduler
	if cfg.KeepAlive.Enabled {
		ka, err = keepalive.New(cfg.KeepAlive.Cron, rt.client, 0)
		if err != nil {
			return err
		}
		ka.Start()
	}

	svc := handlers.NewHandlerService(cfg, rt.client)
	srv := server.NewHTTPServer(&server.Config{
		Address: cfg.Server.Address,
		Port:    cfg.Server.Port,
		Release: cfg.App.Environment == "production",
	}, svc, rt.metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("HTTP shutdown failed", zap.Error(shutdownErr))
	}
	if ka != nil {
		ka.Stop(shutdownCtx)
	}
	return err
}
