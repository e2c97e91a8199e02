package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal"
	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/bus"
	"github.com/tinyland-inc/markovrelay/pkg/channels"
	"github.com/tinyland-inc/markovrelay/pkg/commands"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/dispatch"
	"github.com/tinyland-inc/markovrelay/pkg/gate"
	"github.com/tinyland-inc/markovrelay/pkg/health"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
	"github.com/tinyland-inc/markovrelay/pkg/markov"
	"github.com/tinyland-inc/markovrelay/pkg/moderation"
	"github.com/tinyland-inc/markovrelay/pkg/parser"
	"github.com/tinyland-inc/markovrelay/pkg/render"
	"github.com/tinyland-inc/markovrelay/pkg/secrets"
	"github.com/tinyland-inc/markovrelay/pkg/storage/sqlite"
)

const shutdownGrace = 15 * time.Second

func gatewayCmd(ctx context.Context, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(internal.GetConfigPath())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.ApplyLogging(cfg, debug)
	if debug {
		fmt.Println("🔍 Debug mode enabled")
	}
	snapshot := config.NewSnapshot(cfg)

	tokens := secrets.NewTokenSource(cfg.Discord, internal.GetCredentialPath())
	token, err := tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("error resolving discord token: %w (run `markovrelay auth login`)", err)
	}

	store, err := sqlite.Open(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("error opening corpus: %w", err)
	}
	defer store.Close()

	eb := bus.NewEventBus()
	defer eb.Close()

	discord, err := channels.NewDiscordChannel(token, snapshot, eb)
	if err != nil {
		return fmt.Errorf("error creating discord channel: %w", err)
	}

	builder := address.NewBuilder(cfg.Discord.Instance, discord)
	ingestor := gate.NewIngestor(parser.New(), store.WordStats(), store.Sentences())

	dispatcher := dispatch.New(dispatch.Deps{
		Bus:       eb,
		Transport: discord,
		Config:    snapshot,
		Builder:   builder,
		Ingestor:  ingestor,
		Protocol:  moderation.NewProtocol(ingestor, store.Sentences(), builder),
		Generator: markov.NewGenerator(store.Sentences(), markov.Options{
			MaxWords:   cfg.Markov.MaxWords,
			SampleSize: cfg.Markov.SampleSize,
		}),
		Keywords: markov.NewKeywords(store.WordStats(), cfg.Markov.KeywordMinLen),
		Renderer: render.New(),
		Commands: commands.NewRouter(store, builder, discord),
	})

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	healthServer.AddCheck("corpus", store.Ping)
	healthServer.AddCheck("discord", func(context.Context) error {
		if !discord.IsRunning() {
			return errors.New("not connected")
		}
		return nil
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.Start(runCtx); err != nil {
		return err
	}
	if err := discord.Start(runCtx); err != nil {
		dispatcher.Stop(context.Background())
		return err
	}

	fmt.Printf("✓ %s connected as %s\n", cfg.Bot.BotName, discord.BotUserID())
	fmt.Printf("✓ Corpus at %s\n", store.Path())
	fmt.Printf("✓ Health endpoints available at http://%s/health, /ready and /metrics\n", healthServer.Addr())
	fmt.Println("Press Ctrl+C to stop, send SIGHUP to reload the config")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reloadOnHangup(gctx, snapshot, tokens, discord)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		shutdown(shutdownCtx, dispatcher, discord, healthServer)
		return nil
	})

	err = g.Wait()
	fmt.Println("✓ Gateway stopped")
	return err
}

type stopper interface {
	Stop(ctx context.Context) error
}

// shutdown drains the dispatcher while the Discord session can still
// deliver replies, then closes the session, and stops the health server
// last so /ready reports the shutdown until the end.
func shutdown(ctx context.Context, dispatcher, discord, healthServer stopper) {
	if err := dispatcher.Stop(ctx); err != nil {
		logger.WarnCF("dispatch", "Dispatcher shutdown incomplete", map[string]any{"error": err.Error()})
	}
	if err := discord.Stop(ctx); err != nil {
		logger.WarnCF("discord", "Discord shutdown failed", map[string]any{"error": err.Error()})
	}
	if err := healthServer.Stop(ctx); err != nil {
		logger.WarnCF("health", "Health server shutdown failed", map[string]any{"error": err.Error()})
	}
}

// reloadOnHangup swaps in a freshly loaded config on every SIGHUP. Handlers
// already running keep the snapshot they loaded.
func reloadOnHangup(ctx context.Context, snapshot *config.Snapshot, tokens *secrets.TokenSource, discord *channels.DiscordChannel) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		next, err := config.LoadConfig(internal.GetConfigPath())
		if err != nil {
			logger.ErrorCF("config", "Reload failed, keeping current config", map[string]any{"error": err.Error()})
			continue
		}
		prev := snapshot.Swap(next)
		internal.ApplyLogging(next, false)

		if prev.Discord != next.Discord {
			// the running session keeps its token until restart
			tokens.Update(next.Discord)
			logger.WarnC("config", "Discord settings changed; restart to reconnect")
		}
		if prev.Bot.Activity != next.Bot.Activity || prev.Bot.ActivityType != next.Bot.ActivityType {
			if err := discord.SetPresence(next.Bot.Activity, next.Bot.ActivityType); err != nil {
				logger.WarnCF("discord", "Failed to update presence", map[string]any{"error": err.Error()})
			}
		}
		logger.InfoCF("config", "Config reloaded", map[string]any{"bot_name": next.Bot.BotName})
	}
}
