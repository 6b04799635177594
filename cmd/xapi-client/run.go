package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smnsjas/go-xapi/backend"
	"github.com/smnsjas/go-xapi/client"
	xlog "github.com/smnsjas/go-xapi/internal/log"
	"github.com/smnsjas/go-xapi/options"
	"github.com/smnsjas/go-xapi/transport"
)

var errConnectionClosed = errors.New("connection closed")

func run(cmd *cobra.Command, f *flags, args []string) error {
	logger, err := xlog.New(xlog.Config{
		Level:  f.logLevel,
		Format: f.logFormat,
		File:   f.logFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	registered, err := registeredDefaults(f.profile)
	if err != nil {
		return err
	}
	call, err := callOptions(f, args)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	connOpts := []client.Option{
		client.WithLevelSetter(logger),
		client.WithLogger(logger.Logger),
		client.WithMetrics(reg),
	}
	if f.audit {
		audit := slog.New(xlog.NewRedactingHandler(slog.NewJSONHandler(cmd.ErrOrStderr(), nil)))
		connOpts = append(connOpts, client.WithAuditLogger(audit))
	}
	connector := client.NewConnector(newDispatcher(f, logger.Logger).Dispatch, registered, connOpts...)

	resolved, err := connector.Resolve(call)
	if err != nil {
		return err
	}
	if resolved.Password == "" {
		pw, err := fallbackPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		call.Password = pw
	}

	connect := client.Bind(connector, client.Factory(client.WithClientLogger(logger.Logger)))
	x, err := connect(call)
	if err != nil {
		return err
	}
	defer x.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := waitReady(ctx, x, f.timeout); err != nil {
		return err
	}
	logger.Info("connected", "target", resolved.String())

	out := cmd.OutOrStdout()
	if f.method != "" || f.get != "" {
		reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		result, err := request(reqCtx, x, f)
		if err != nil {
			return err
		}
		if err := printJSON(out, result); err != nil {
			return err
		}
	}

	if len(f.listen) > 0 {
		return listen(ctx, x, f, reg, out)
	}
	return nil
}

// registeredDefaults builds the connector's defaults layer: the secure
// WebSocket protocol, overridden by the profile if one is given.
func registeredDefaults(profile string) (options.Options, error) {
	base := options.Options{Protocol: options.DefaultProtocol}
	if profile == "" {
		return base, nil
	}
	p, err := options.LoadProfile(profile)
	if err != nil {
		return options.Options{}, err
	}
	return options.Merge(base, p), nil
}

// callOptions builds the per-call layer from the URL argument with explicit
// flags taking precedence.
func callOptions(f *flags, args []string) (options.Options, error) {
	var fromURL options.Options
	if len(args) == 1 {
		o, err := options.ParseURL(args[0])
		if err != nil {
			return options.Options{}, err
		}
		fromURL = o
	}

	fromFlags := options.Options{
		Protocol: normalizeProtocol(f.protocol),
		Host:     f.host,
		Port:     f.port,
		Username: f.username,
		Password: f.password,
		LogLevel: f.logLevel,
	}

	params := make(map[string]string)
	if f.knownHosts != "" {
		params["known_hosts"] = f.knownHosts
	}
	if f.sshCommand != "" {
		params["command"] = f.sshCommand
	}
	if f.insecure {
		params["insecure"] = "true"
	}
	if len(params) > 0 {
		fromFlags.Params = params
	}

	return options.Merge(fromURL, fromFlags), nil
}

// normalizeProtocol accepts "wss" as well as "wss:".
func normalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" || strings.HasSuffix(p, ":") {
		return p
	}
	return p + ":"
}

func newDispatcher(f *flags, logger *slog.Logger) *backend.Dispatcher {
	opts := []backend.DispatcherOption{
		backend.WithLogger(logger),
		backend.WithSocketFactory(func(url, token string) (transport.Handle, error) {
			return transport.NewWebSocket(url, token,
				transport.WithInsecureSkipVerify(f.insecure),
				transport.WithHandshakeTimeout(f.timeout),
			)
		}),
	}
	if f.ssh {
		opts = append(opts, backend.WithSSH(func(cfg transport.SSHConfig) (transport.Handle, error) {
			cfg.Timeout = f.timeout
			return transport.NewSSH(cfg)
		}))
	}
	return backend.NewDispatcher(opts...)
}

func waitReady(ctx context.Context, x *client.XAPI, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-x.Ready():
		return nil
	case <-x.Done():
		if err := x.Err(); err != nil {
			return fmt.Errorf("%w: %w", errConnectionClosed, err)
		}
		return errConnectionClosed
	case <-timer.C:
		return fmt.Errorf("connect timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func request(ctx context.Context, x *client.XAPI, f *flags) (json.RawMessage, error) {
	if f.get != "" {
		return x.Get(ctx, splitPath(f.get)...)
	}

	var params any
	if f.params != "" {
		if !json.Valid([]byte(f.params)) {
			return nil, errors.New("--params is not valid JSON")
		}
		params = json.RawMessage(f.params)
	}
	return x.Execute(ctx, f.method, params)
}

// splitPath splits "Status/Audio/Volume" (or "Status Audio Volume") into
// its nodes.
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == ' ' })
}

func printJSON(w io.Writer, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// listen subscribes to each path and prints feedback until ctx is done or
// the connection closes. With --metrics-addr the registry is served
// alongside.
func listen(ctx context.Context, x *client.XAPI, f *flags, reg *prometheus.Registry, out io.Writer) error {
	for _, p := range f.listen {
		if _, err := x.Subscribe(ctx, splitPath(p)...); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		enc := json.NewEncoder(out)
		for {
			select {
			case n, ok := <-x.Feedback():
				if !ok {
					if err := x.Err(); err != nil {
						return fmt.Errorf("%w: %w", errConnectionClosed, err)
					}
					return errConnectionClosed
				}
				if err := enc.Encode(struct {
					Method string          `json:"method"`
					Params json.RawMessage `json:"params,omitempty"`
				}{n.Method, n.Params}); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	if f.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
