package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plannerbot/internal/config"
	"plannerbot/internal/conversation"
	"plannerbot/internal/digest"
	"plannerbot/internal/event"
	"plannerbot/internal/gcal"
	"plannerbot/internal/nlp"
	"plannerbot/internal/server"
	"plannerbot/internal/source"
	"plannerbot/internal/store"
	"plannerbot/internal/telegram"
	"plannerbot/internal/textanalysis"
	"plannerbot/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("loading config", err)
	}

	ctx := context.Background()

	gcalClient, err := gcal.NewClient(cfg.GoogleCredentialsFile, cfg.GoogleTokenFile, cfg.GoogleCalendarID)
	if err != nil {
		fatal("creating calendar client", err)
	}
	if gcalClient.IsAuthenticated() {
		fmt.Println("Google Calendar client authenticated")
	} else {
		fmt.Printf("Google Calendar not authenticated, visit:\n%s\n", gcalClient.GetAuthURL())
		fmt.Printf("The consent redirect is handled on http://localhost:%d/oauth/callback\n", cfg.HTTPPort)
	}

	analyzer := textanalysis.NewClient(cfg.TextAnalysisURL, cfg.TextAnalysisAPIKey, cfg.RemoteTimeout)
	engine := conversation.NewEngine(nlp.NewExtractor(), analyzer, nil)

	tgClient := initTelegram(cfg)
	waClient := initWhatsApp(ctx, cfg)

	// Each transport gets its own controller bound to its replier; the
	// store, engine and calendar are shared. Expired conversations notify
	// the user through the transport they came in on.
	controllers := make(map[source.SourceType]*conversation.Controller)

	convStore := store.New(store.Config{
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
	}, func(rec *event.Record) {
		if !cfg.NotifyOnExpiry {
			return
		}
		if ctrl, ok := controllers[rec.Origin.SourceType]; ok {
			ctrl.ExpireNotice(rec)
		}
	})

	startController := func(st source.SourceType, replier source.Replier, messages <-chan source.Message) {
		ctrl := conversation.NewController(conversation.Config{
			Store:         convStore,
			Engine:        engine,
			Analyzer:      analyzer,
			Calendar:      gcalClient,
			Replier:       replier,
			BotName:       cfg.BotName,
			StopKeywords:  cfg.StopKeywords,
			HelpKeywords:  cfg.HelpKeywords,
			RemoteTimeout: cfg.RemoteTimeout,
		})
		controllers[st] = ctrl

		go func() {
			for msg := range messages {
				ctrl.HandleMessage(ctx, msg)
			}
		}()
	}

	var digestReplier source.Replier
	if tgClient != nil {
		startController(source.SourceTypeTelegram, tgClient.Client, tgClient.Handler.MessageChan())
		digestReplier = tgClient.Client
	}
	if waClient != nil {
		startController(source.SourceTypeWhatsApp, waClient.Client, waClient.Handler.MessageChan())
		if digestReplier == nil {
			digestReplier = waClient.Client
		}
	}
	if len(controllers) == 0 {
		fatal("starting transports", fmt.Errorf("no chat transport configured"))
	}

	convStore.StartSweeper()
	defer convStore.StopSweeper()

	var dailyDigest *digest.Digest
	var digestScheduler *digest.Scheduler
	if cfg.DigestChannel != "" && digestReplier != nil {
		dailyDigest = digest.New(gcalClient, digestReplier, cfg.DigestChannel)
		digestScheduler = digest.NewScheduler(dailyDigest, cfg.DigestCronSpec, cfg.DigestLocation())
		if err := digestScheduler.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: digest scheduler failed to start: %v\n", err)
		}
		defer digestScheduler.Stop()
	}

	srv := server.New(server.Config{
		Store:      convStore,
		Digest:     dailyDigest,
		GCalClient: gcalClient,
		Port:       cfg.HTTPPort,
	})
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "HTTP server error: %v\n", err)
		}
	}()

	waitForShutdown(srv, tgClient, waClient)
}

const srvShutdownTimeout = 5 * time.Second

// telegramTransport bundles the client with its message handler.
type telegramTransport struct {
	Client  *telegram.Client
	Handler *telegram.Handler
}

type whatsappTransport struct {
	Client  *whatsapp.Client
	Handler *whatsapp.Handler
}

func initTelegram(cfg *config.Config) *telegramTransport {
	if cfg.TelegramAppID == 0 || cfg.TelegramAppHash == "" {
		fmt.Println("Telegram: Not configured (TELEGRAM_APP_ID and TELEGRAM_APP_HASH required)")
		return nil
	}

	handler := telegram.NewHandler(cfg.BotName, cfg.DebugAllMessages)

	tgClient, err := telegram.NewClient(telegram.ClientConfig{
		APIID:       cfg.TelegramAppID,
		APIHash:     cfg.TelegramAppHash,
		SessionPath: cfg.TelegramSessionFile,
		Handler:     handler,
	})
	if err != nil {
		fmt.Printf("Warning: Failed to create Telegram client: %v\n", err)
		return nil
	}

	if err := tgClient.Connect(); err != nil {
		fmt.Printf("Warning: Failed to connect Telegram: %v\n", err)
		return nil
	}

	if !tgClient.IsConnected() {
		if cfg.TelegramPhone == "" {
			fmt.Println("Telegram: session not authorized and TELEGRAM_PHONE not set, transport disabled")
			return nil
		}
		if err := tgClient.AuthenticateWithPhone(context.Background(), cfg.TelegramPhone, os.Stdin); err != nil {
			fmt.Printf("Warning: Telegram authentication failed: %v\n", err)
			return nil
		}
	}

	tgClient.StartUpdateLoop()

	fmt.Println("Telegram client initialized")
	return &telegramTransport{Client: tgClient, Handler: handler}
}

func initWhatsApp(ctx context.Context, cfg *config.Config) *whatsappTransport {
	if !cfg.WhatsAppEnabled {
		return nil
	}

	handler := whatsapp.NewHandler(cfg.BotName, cfg.DebugAllMessages)

	waClient, err := whatsapp.NewClient(handler, cfg.WhatsAppDBPath)
	if err != nil {
		fmt.Printf("Warning: Failed to create WhatsApp client: %v\n", err)
		return nil
	}

	if err := waClient.Connect(ctx); err != nil {
		fmt.Printf("Warning: Failed to connect WhatsApp: %v\n", err)
		return nil
	}

	fmt.Println("WhatsApp client initialized")
	return &whatsappTransport{Client: waClient, Handler: handler}
}

func fatal(context string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", context, err)
	os.Exit(1)
}

func waitForShutdown(srv *server.Server, tgClient *telegramTransport, waClient *whatsappTransport) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("Shutting down...")

	if tgClient != nil {
		tgClient.Client.Disconnect()
	}
	if waClient != nil {
		waClient.Client.Disconnect()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP server shutdown error: %v\n", err)
	}
}
