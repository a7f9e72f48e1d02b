package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/metrics"
	"github.com/axintera/axctl/pkg/ratelimit"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 30
	serverMaxHeaderBytes      = 20
	serverHostDefault         = "127.0.0.1"

	flagPublish = "publish"
)

func newServerCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Serve provider reputation over HTTP and recalculate scores in the background",
		UsageText: `axctl server --port 8000
   axctl server --host 0.0.0.0 --publish --network flowTestnet`,
		HideHelpCommand: true,
		Action:          cmdStartServer,
		Flags: chainFlags(
			&cli.IntFlag{
				Name:  flagPort,
				Usage: "Port on which the server will listen (optional, defaults to config)",
			},
			&cli.StringFlag{
				Name:  flagHost,
				Usage: "Interface on which the server will listen",
				Value: serverHostDefault,
			},
			&cli.BoolFlag{
				Name:  flagPublish,
				Usage: "Also publish the funding wallet's score once per epoch",
			},
			gaugeFlag(),
			tokenFlag(),
		),
	}
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	port := cfg.Config.Server.Port
	if cmd.IsSet(flagPort) {
		port = cmd.Int(flagPort)
	}
	address := fmt.Sprintf("%s:%d", cmd.String(flagHost), port)

	m := metrics.New()
	limiter := ratelimit.New(cfg.Config.Server.RateLimitRPS, cfg.Config.Server.RateLimitBurst, 0)

	var pub *publisher
	if cmd.Bool(flagPublish) {
		p, err := newPublisher(ctx, cmd, m)
		if err != nil {
			return fmt.Errorf("starting publisher: %w", err)
		}
		defer p.Close()
		pub = p
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg.DB, m, limiter),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "address", "http://"+address)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runRecalcLoop(ctx, cfg.DB, cfg.Config.WilsonZ, cfg.Config.RecalcInterval, m, pub)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error shutting down server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// runRecalcLoop recalculates scores at start and then on every tick until
// ctx is done. With a publisher it also publishes the current epoch.
func runRecalcLoop(ctx context.Context, db *sql.DB, z float64, interval time.Duration, m *metrics.Metrics, pub *publisher) {
	recalcOnce(ctx, db, z, m, pub)

	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recalcOnce(ctx, db, z, m, pub)
		}
	}
}

func recalcOnce(ctx context.Context, db *sql.DB, z float64, m *metrics.Metrics, pub *publisher) {
	if pub != nil {
		res, err := pub.publish(ctx, pub.currentEpoch())
		switch {
		case err == nil:
			slog.Info("score published", "epoch", res.Epoch, "score_bps", res.ScoreBps, "tx", res.Outcome.Tx.Hex())
		case errors.Is(err, data.ErrAlreadySubmitted), errors.Is(err, data.ErrNotFound):
			slog.Debug("publish skipped", "reason", err)
		default:
			slog.Error("publish failed", "error", err)
		}
		return
	}

	n, err := data.RecalcScores(db, z)
	if err != nil {
		slog.Error("recalc failed", "error", err)
		return
	}
	m.ObserveRecalc()
	slog.Debug("recalc complete", "providers", n)
}
