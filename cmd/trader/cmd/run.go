package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/engine"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/metrics"
	"github.com/rustyeddy/autotrader/pkg/logger"
)

var (
	runConfigPath string
	runDuration   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured strategies against the paper exchange",
	Long: `Activate every strategy in the configuration, drive the paper exchange's
random-walk feed and stream the event log until interrupted.

Example:
  trader run -f trader.yaml
  trader run -f trader.yaml --for 10m`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (defaults if empty)")
	runCmd.Flags().DurationVar(&runDuration, "for", 0, "stop after this long (0 runs until interrupted)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(runConfigPath); err != nil {
			return err
		}
	}

	log := logger.New(cfg.Log.Level)
	if cfg.Log.Console {
		log = logger.NewConsole(cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	jr, err := journal.Open(cfg.Journal.Kind, cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := jr.Close(); err != nil {
			log.Error().Err(err).Msg("close journal")
		}
	}()

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	opts.Journal = jr
	opts.Logbook = engine.NewLogbook(0)

	ex, err := cfg.PaperExchange()
	if err != nil {
		return err
	}
	co := engine.NewCoordinator(log, opts)
	if err := co.RegisterExchange(ex); err != nil {
		return err
	}
	defer co.Shutdown()

	active := 0
	for _, sc := range cfg.Strategies {
		inst, err := co.Activate(ctx, sc)
		if err != nil {
			log.Error().Err(err).Str("strategy", sc.String()).Msg("activation failed")
			continue
		}
		active++
		log.Info().
			Str("instance", inst.ID()).
			Str("strategy", sc.String()).
			Time("activated_at", inst.ActivatedAt()).
			Msg("activated")
	}
	if active == 0 {
		return fmt.Errorf("no strategy could be activated")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Listen(cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		log.Info().Str("addr", srv.Addr().String()).Msg("metrics listening")
		g.Go(func() error { return srv.Run(gctx) })
	}

	g.Go(func() error { return ex.Run(gctx) })
	g.Go(func() error {
		drainLogbook(gctx, co.Logbook(), cmd.OutOrStdout(), time.Second)
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info().Msg("stopping")
	return nil
}

// drainLogbook prints new logbook records every interval until ctx is done,
// then once more.
func drainLogbook(ctx context.Context, book *engine.Logbook, w io.Writer, interval time.Duration) {
	cursor := 0
	flush := func() {
		var recs []engine.LogRecord
		recs, cursor = book.Since(cursor)
		for _, r := range recs {
			fmt.Fprintln(w, formatRecord(r))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}

func formatRecord(r engine.LogRecord) string {
	lvl := r.Level.String()
	if r.Level == zerolog.NoLevel {
		lvl = "-"
	}
	return fmt.Sprintf("%s %-5s %s %s", r.Time.Format(time.TimeOnly), lvl, r.Instance, r.Message)
}
