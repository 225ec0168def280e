// Command allogen reads one orthography per line from stdin and writes
// allophone state label sequences to stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	phoneseq "github.com/ieee0824/phoneseq-go"
	"github.com/ieee0824/phoneseq-go/internal/config"
	"github.com/ieee0824/phoneseq-go/internal/observe"
	"github.com/ieee0824/phoneseq-go/labelstore"
	"github.com/ieee0824/phoneseq-go/lexicon"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allogen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config")
	lexiconPath := fs.String("lexicon", "", "path to lexicon (Bliss XML, .gz, or tab-separated .txt)")
	tyingPath := fs.String("state-tying", "", "path to state tying file")
	epoch := fs.Int64("epoch", 0, "epoch used to seed the random streams")
	workers := fs.Int("workers", 0, "concurrent generators (0 = from config)")
	dbPath := fs.String("db", "", "SQLite database to store sequences in")
	garbage := fs.Int("garbage", -1, "garbage sequences per orthography (-1 = from config)")
	decode := fs.String("decode", "", "print the allophone state of a codec index and exit")
	format := fs.String("format", "labels", "output format: labels, states or indices")
	skipUnresolved := fs.Bool("skip-unresolved", false, "skip orthographies with unknown words instead of failing")
	logSkipped := fs.Int("log-skipped", -1, "number of skipped orthographies to log (-1 = from config)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	overrideString(&cfg.LexiconFile, *lexiconPath)
	overrideString(&cfg.StateTyingFile, *tyingPath)
	overrideString(&cfg.DatabasePath, *dbPath)
	overrideString(&cfg.Telemetry.MetricsAddr, *metricsAddr)
	if *workers > 0 {
		cfg.Dataset.Workers = *workers
	}
	if *garbage >= 0 {
		cfg.Dataset.RandomPhoneSeqs = *garbage
	}
	if *logSkipped >= 0 {
		cfg.Dataset.LogSkippedSeqs = *logSkipped
	}
	if *skipUnresolved {
		cfg.Dataset.ErrorOnInvalid = false
	}
	if *verbose {
		cfg.Telemetry.LogLevel = config.LogDebug
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.LexiconFile == "" {
		fmt.Fprintln(stderr, "Usage: allogen -lexicon LEXICON [-state-tying FILE] < orthographies")
		fs.PrintDefaults()
		return 1
	}
	if *format != "labels" && *format != "states" && *format != "indices" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", *format)
		return 1
	}

	logger := newLogger(cfg.Telemetry.LogLevel, stderr)
	if err := generate(ctx, cfg, *epoch, *decode, *format, logger, stdin, stdout); err != nil {
		logger.Error("allogen failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func generate(ctx context.Context, cfg config.Config, epoch int64, decode, format string,
	logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	opts := []phoneseq.Option{
		phoneseq.WithConfig(cfg.Generator.Seqgen()),
		phoneseq.WithLogger(logger),
		phoneseq.WithWorkers(cfg.Dataset.Workers),
		phoneseq.WithRandomSeqs(cfg.Dataset.RandomPhoneSeqs),
	}
	if cfg.StateTyingFile != "" {
		opts = append(opts, phoneseq.WithStateTyingFile(cfg.StateTyingFile))
	}

	if cfg.Telemetry.MetricsAddr != "" {
		handler, shutdown, err := observe.InitProvider(ctx, "allogen", version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer shutdown(context.Background())
		metrics, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		opts = append(opts, phoneseq.WithMetrics(metrics))
		stopServer := serveMetrics(cfg.Telemetry.MetricsAddr, handler, logger)
		defer stopServer()
	}

	p, err := phoneseq.NewPipeline(cfg.LexiconFile, opts...)
	if err != nil {
		return err
	}

	if decode != "" {
		idx, err := strconv.ParseUint(decode, 10, 64)
		if err != nil {
			return fmt.Errorf("decode index %q: %w", decode, err)
		}
		s, err := p.Decode(idx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, s.Format())
		return err
	}

	orths, err := readOrths(stdin)
	if err != nil {
		return fmt.Errorf("read orthographies: %w", err)
	}
	results, err := p.Batch(ctx, epoch, orths)
	if err != nil {
		return err
	}

	skipped := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if cfg.Dataset.ErrorOnInvalid {
			return fmt.Errorf("orthography %d %q: %w%s", r.Index, r.Orth, r.Err, suggestion(p.Lexicon(), r.Err))
		}
		if skipped < cfg.Dataset.LogSkippedSeqs {
			logger.Warn("skipping orthography",
				slog.Int("index", r.Index),
				slog.String("orth", r.Orth),
				slog.Any("error", r.Err),
				slog.Any("suggestions", suggestions(p.Lexicon(), r.Err)))
		}
		skipped++
	}
	if skipped > 0 {
		logger.Info("skipped orthographies", slog.Int("count", skipped), slog.Int("total", len(results)))
	}

	w := bufio.NewWriter(stdout)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := writeResult(w, p, r, format); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if cfg.DatabasePath != "" {
		if err := store(ctx, cfg.DatabasePath, epoch, p, results, logger); err != nil {
			return fmt.Errorf("store sequences: %w", err)
		}
	}
	return nil
}

func writeResult(w io.Writer, p *phoneseq.Pipeline, r phoneseq.Result, format string) error {
	var fields []string
	switch format {
	case "states":
		fields = make([]string, len(r.States))
		for i, s := range r.States {
			fields[i] = s.Format()
		}
	case "indices":
		idx, err := p.Indices(r.States)
		if err != nil {
			return err
		}
		fields = make([]string, len(idx))
		for i, v := range idx {
			fields[i] = strconv.FormatUint(v, 10)
		}
	default:
		fields = intFields(r.Labels)
	}
	if _, err := fmt.Fprintf(w, "%d\t%s\n", r.Index, strings.Join(fields, " ")); err != nil {
		return err
	}
	for k, g := range r.Garbage {
		if _, err := fmt.Fprintf(w, "%d.garbage%d\t%s\n", r.Index, k, strings.Join(intFields(g), " ")); err != nil {
			return err
		}
	}
	return nil
}

func intFields(labels []int) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strconv.Itoa(l)
	}
	return out
}

func store(ctx context.Context, path string, epoch int64, p *phoneseq.Pipeline, results []phoneseq.Result, logger *slog.Logger) error {
	st, err := labelstore.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.PutClassLabels(ctx, p.ClassLabels()); err != nil {
		return err
	}
	seqs := make([]labelstore.Sequence, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		seqs = append(seqs, labelstore.Sequence{
			Epoch:   epoch,
			Index:   r.Index,
			Orth:    r.Orth,
			Labels:  r.Labels,
			Garbage: r.Garbage,
		})
	}
	if err := st.PutSequences(ctx, seqs); err != nil {
		return err
	}
	logger.Info("stored sequences", slog.String("path", path), slog.Int("count", len(seqs)))
	return nil
}

// readOrths returns the non-blank lines of r, trimmed.
func readOrths(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func suggestions(lex *lexicon.Lexicon, err error) []string {
	var uw *lexicon.UnresolvedWordError
	if !errors.As(err, &uw) {
		return nil
	}
	part := uw.Part
	if part == "" {
		part = uw.Word
	}
	return lex.Suggest(part, 3)
}

func suggestion(lex *lexicon.Lexicon, err error) string {
	s := suggestions(lex, err)
	if len(s) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func overrideString(target *string, v string) {
	if v != "" {
		*target = v
	}
}
