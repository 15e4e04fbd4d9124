// cmd/pollstore-client/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/FairForge/pollstore/internal/client"
	"github.com/FairForge/pollstore/internal/logging"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const uploadDir = "upload"

var errUsage = errors.New("bad usage")

type options struct {
	rate          float64
	retries       int
	timeout       time.Duration
	oneConnection bool
	budget        int
	pause         time.Duration
	delay         time.Duration
	verbose       bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("pollstore-client", pflag.ContinueOnError)
	flags.Float64Var(&opts.rate, "rate", 0, "uploads per second, 0 for unlimited")
	flags.IntVar(&opts.retries, "retries", 0, "retries per request on transport failure")
	flags.DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	flags.BoolVar(&opts.oneConnection, "one-connection", true, "with <host:port> <folder> ALL, upload over one connection to probe the request budget")
	flags.IntVar(&opts.budget, "budget", 40, "requests the server answers per connection")
	flags.DurationVar(&opts.pause, "pause", 10*time.Second, "pause after the budget before reusing the connection")
	flags.DurationVar(&opts.delay, "delay", 2*time.Second, "longpoll: delay before the late PUT")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.Usage = func() { usage(os.Stderr) }

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	level := logging.LevelInfo
	if opts.verbose {
		level = logging.LevelDebug
	}
	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: logging.FormatConsole,
		Output: os.Stderr,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags.Args(), opts, logger, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		if errors.Is(err, errUsage) || errors.Is(err, client.ErrLocalFileMissing) {
			usage(os.Stderr)
		}
		stop()
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pollstore-client <server_url> <local_file> <remote_path>")
	fmt.Fprintln(w, "  pollstore-client <server_url> ALL")
	fmt.Fprintln(w, "  pollstore-client <server_host:port> <folder> ALL [--one-connection]")
	fmt.Fprintln(w, "  pollstore-client longpoll [host] [port]")
	fmt.Fprintln(w, "  pollstore-client watch <server_url> <folder>")
	fmt.Fprintln(w, "Example: pollstore-client localhost:9000 upload ALL")
}

func run(ctx context.Context, args []string, opts options, logger *zap.Logger, out io.Writer) error {
	switch {
	case len(args) >= 1 && args[0] == "longpoll" && len(args) <= 3:
		host, port := "localhost", "9000"
		if len(args) > 1 {
			host = args[1]
		}
		if len(args) > 2 {
			port = args[2]
		}
		return runLongPoll(ctx, net.JoinHostPort(host, port), opts, logger, out)

	case len(args) == 3 && args[0] == "watch":
		return runWatch(ctx, args[1], args[2], opts, logger, out)

	case len(args) == 2 && args[1] == "ALL":
		return runUploadAll(ctx, args[0], uploadDir, opts, logger, out)

	case len(args) == 3 && args[2] == "ALL":
		if !opts.oneConnection {
			return runUploadAll(ctx, args[0], args[1], opts, logger, out)
		}
		return runBudgetProbe(ctx, args[0], args[1], opts, logger, out)

	case len(args) == 3:
		return runSingle(ctx, args[0], client.Item{Local: args[1], Remote: args[2]}, opts, logger, out)
	}
	return errUsage
}

func newUploader(serverURL string, opts options, logger *zap.Logger, extra ...client.Option) (*client.Uploader, error) {
	base := []client.Option{
		client.WithRate(opts.rate),
		client.WithRetries(opts.retries),
		client.WithTimeout(opts.timeout),
	}
	return client.NewUploader(serverURL, logger, append(base, extra...)...)
}

func runSingle(ctx context.Context, serverURL string, item client.Item, opts options, logger *zap.Logger, out io.Writer) error {
	if err := client.CheckItems([]client.Item{item}); err != nil {
		return err
	}
	u, err := newUploader(serverURL, opts, logger)
	if err != nil {
		return err
	}
	res := u.Upload(ctx, item)
	fmt.Fprintf(out, "PUT %s -> %s\n", u.URL(item.Remote), describe(res))
	return nil
}

func runUploadAll(ctx context.Context, serverURL, folder string, opts options, logger *zap.Logger, out io.Writer) error {
	items, err := client.ScanDir(folder)
	if err != nil {
		return fmt.Errorf("%w: %v", client.ErrLocalFileMissing, err)
	}
	u, err := newUploader(serverURL, opts, logger, client.WithConnectionPerRequest())
	if err != nil {
		return err
	}

	results := u.UploadAll(ctx, items, func(r client.Result) {
		fmt.Fprintf(out, "PUT %s -> %s\n", u.URL(r.Item.Remote), describe(r))
	})

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	logger.Info("batch finished", zap.Int("files", len(results)), zap.Int("failed", failed))
	return nil
}

func runBudgetProbe(ctx context.Context, addr, folder string, opts options, logger *zap.Logger, out io.Writer) error {
	items, err := client.ScanDir(folder)
	if err != nil {
		return fmt.Errorf("%w: %v", client.ErrLocalFileMissing, err)
	}

	probe := &client.BudgetProbe{
		Addr:    addr,
		Budget:  opts.budget,
		Pause:   opts.pause,
		Timeout: opts.timeout,
		Logger:  logger,
		OnResult: func(stage string, r client.Result) {
			fmt.Fprintln(out, r.String())
		},
	}
	report, err := probe.Run(ctx, items)
	if err != nil {
		return err
	}

	if report.Exhausted() {
		fmt.Fprintf(out, "server closed the connection after %d requests, new connection accepted the retry\n", opts.budget)
	} else {
		fmt.Fprintln(out, "server did not enforce the expected connection budget")
	}
	return nil
}

func runLongPoll(ctx context.Context, addr string, opts options, logger *zap.Logger, out io.Writer) error {
	existing := client.Item{Local: filepath.Join(uploadDir, "test_exists.ts"), Remote: "upload/test_exists.ts"}
	delayed := client.Item{Local: filepath.Join(uploadDir, "test_delay.ts"), Remote: "upload/test_delay.ts"}

	u, err := newUploader(addr, opts, logger)
	if err != nil {
		return err
	}
	probe := &client.LongPollProbe{Uploader: u, Delay: opts.delay, Logger: logger}

	report, err := probe.Run(ctx, existing, delayed, "upload/test_missing.ts")
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Uploading test_exists.ts to server:")
	fmt.Fprintln(out, report.Put.String())
	fmt.Fprintln(out, "\nTesting existing file (should be instant):")
	fmt.Fprintln(out, report.Existing.String())
	fmt.Fprintln(out, "\nTesting missing file (should wait for the poll timeout):")
	fmt.Fprintln(out, report.Missing.String())
	fmt.Fprintf(out, "\nTesting delayed file (GET first, then PUT after %s):\n", opts.delay)
	fmt.Fprintln(out, report.Late.String())
	fmt.Fprintln(out, report.Delayed.String())
	return nil
}

func runWatch(ctx context.Context, serverURL, folder string, opts options, logger *zap.Logger, out io.Writer) error {
	u, err := newUploader(serverURL, opts, logger)
	if err != nil {
		return err
	}
	w, err := client.NewWatcher(u, folder, logger)
	if err != nil {
		return err
	}
	w.OnResult = func(r client.Result) {
		fmt.Fprintf(out, "PUT %s -> %s\n", u.URL(r.Item.Remote), describe(r))
	}
	return w.Run(ctx)
}

func describe(r client.Result) string {
	if r.Err != nil {
		return fmt.Sprintf("Exception: %v", r.Err)
	}
	return fmt.Sprintf("%d", r.Status)
}
