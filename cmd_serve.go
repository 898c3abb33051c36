package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dkalashnik/telegram-session-log/pkg/bot"
	"github.com/dkalashnik/telegram-session-log/pkg/bot/inbox"
	"github.com/dkalashnik/telegram-session-log/pkg/bot/telegramadapter"
	"github.com/dkalashnik/telegram-session-log/pkg/chart"
	"github.com/dkalashnik/telegram-session-log/pkg/commands"
	"github.com/dkalashnik/telegram-session-log/pkg/httpapi"
	"github.com/dkalashnik/telegram-session-log/pkg/interview"
	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/session"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
	"github.com/dkalashnik/telegram-session-log/pkg/storage"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noHTTP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the operations HTTP API",
		Long: `Run the Telegram bot and the operations HTTP API.

The bot long-polls Telegram for updates. SIGINT or SIGTERM stops polling, aborts
interviews still waiting for a reply and waits for running commands to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			if err := a.settings.RequireToken(); err != nil {
				return err
			}

			client, err := bot.NewClient(a.settings.Telegram.Token, a.settings.Telegram.Debug)
			if err != nil {
				return fmt.Errorf("failed to initialize bot client: %w", err)
			}
			log.Printf("Authorized on account %s", client.Self.UserName)

			messenger, err := telegramadapter.New(client, log.Default())
			if err != nil {
				return fmt.Errorf("failed to create telegram adapter: %w", err)
			}

			attachments, err := storage.NewAttachmentStore(a.settings.Storage.AttachmentsDir)
			if err != nil {
				return err
			}
			renderer, err := chart.NewRenderer(a.settings.Storage.ChartsDir, a.questionnaire.ResultUnit)
			if err != nil {
				return err
			}

			m := metrics.NewMetrics()
			sessions := session.NewCoordinator()
			replies := inbox.New()

			engine, err := interview.NewEngine(a.questionnaire, interview.Dependencies{
				Sessions:    sessions,
				Replies:     replies,
				Messenger:   messenger,
				Attachments: attachments,
				Records:     a.store,
				Metrics:     m,
			})
			if err != nil {
				return err
			}
			aggregator, err := stats.NewAggregator(a.store, a.questionnaire)
			if err != nil {
				return err
			}
			handler, err := commands.NewHandler(a.questionnaire, commands.Dependencies{
				Messenger:  messenger,
				Replies:    replies,
				Interviews: engine,
				Reports:    aggregator,
				Charts:     renderer,
				Records:    a.store,
				Metrics:    m,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			if !noHTTP {
				if !a.settings.Telegram.Debug {
					gin.SetMode(gin.ReleaseMode)
				}
				router := httpapi.NewRouter(httpapi.Dependencies{
					Records:  a.store,
					Reports:  aggregator,
					Charts:   renderer,
					Sessions: sessions,
					Metrics:  m,
				})
				server := httpapi.NewServer(a.settings.HTTP.Addr, router)
				g.Go(func() error { return server.Run(gctx) })
			}
			g.Go(func() error {
				return pollUpdates(gctx, client, handler, a.settings.Telegram.PollTimeout)
			})

			err = g.Wait()
			log.Println("Waiting for running commands to finish...")
			handler.Wait()
			log.Println("Shutdown complete.")
			return err
		},
	}

	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "Do not start the operations HTTP API")
	return cmd
}

func pollUpdates(ctx context.Context, client *bot.Client, handler *commands.Handler, timeout int) error {
	updates := client.GetUpdatesChan(timeout)
	defer client.StopReceivingUpdates()
	log.Println("Starting update processing...")

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := telegramadapter.FromUpdate(update)
			if !ok {
				continue
			}
			handler.Dispatch(ctx, msg)
		case <-ctx.Done():
			log.Println("Stopping update processing loop...")
			return nil
		}
	}
}
