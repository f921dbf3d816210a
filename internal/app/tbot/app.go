package tbot

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/logcfg"
	botHand "github.com/DenisKhanov/KeeneticBot/internal/tg_bot/api/http"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/config"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds every shutdown step.
const shutdownTimeout = 5 * time.Second

// App represents the application structure responsible for initializing dependencies
// and running the Telegram bot.
type App struct {
	serviceProvider *ServiceProvider // The service provider for dependency injection
	config          *config.Config   // The configuration object for the application
	envFile         string           // Env file the configuration is loaded from
	webhookServer   *http.Server     // Webhook server, nil in long polling mode
}

// NewApp creates a new instance of the application.
func NewApp(ctx context.Context, envFile string) (*App, error) {
	app := &App{envFile: envFile}
	err := app.initDeps(ctx)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Run starts the application and runs the Telegram bot.
func (a *App) Run() {
	a.runTelegramBot()
}

// initDeps initializes all dependencies required by the application.
func (a *App) initDeps(ctx context.Context) error {
	inits := []func(context.Context) error{
		a.initConfig,
		a.initServiceProvider,
	}

	for _, f := range inits {
		err := f(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// initConfig initializes the application configuration.
func (a *App) initConfig(_ context.Context) error {
	cfg, err := config.NewConfig(a.envFile)
	if err != nil {
		return err
	}
	a.config = cfg
	return logcfg.RunLoggerConfig(a.config.EnvLogsLevel, a.config.EnvLogFileName)
}

// initServiceProvider initializes the service provider for dependency injection.
func (a *App) initServiceProvider(_ context.Context) error {
	a.serviceProvider = NewServiceProvider(a.config)
	return nil
}

// runTelegramBot starts the Telegram bot with graceful shutdown.
func (a *App) runTelegramBot() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signalChan:
			logrus.Infof("Received %v signal, shutting down bot...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	dispatcher, err := a.serviceProvider.Dispatcher(ctx)
	if err != nil {
		logrus.Fatalf("[ERROR] can't make telegram bot, %v", err)
	}
	if err = a.setupUpdates(); err != nil {
		logrus.Fatalf("[ERROR] can't setup updates, %v", err)
	}

	// Ticker for saving chat sessions to file
	if fileSessions := a.serviceProvider.FileSessions(); fileSessions != nil {
		ticker := time.NewTicker(a.config.StorageFlushInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := fileSessions.Flush(); err != nil {
						logrus.Error("Error while saving sessions on ticker: ", err)
					}
				}
			}
		}()
	}

	// Main loop, one update at a time
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for ctx.Err() == nil {
			if err := dispatcher.Handle(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.WithError(err).Error("Update handling failed")
			}
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down main loop...")
	timeout := a.loopStopTimeout()
	if !waitStopped(loopDone, timeout) {
		logrus.Warnf("Main loop did not stop in %s, sessions written after close are lost", timeout)
	}
	a.shutdown()
}

// loopStopTimeout is the longest a cancelled main loop may stay blocked in one update.
// A long poll request in flight is not cancelled by the context.
func (a *App) loopStopTimeout() time.Duration {
	if a.config.EnvRunMode == config.RunModeWebhook {
		return shutdownTimeout
	}
	return time.Duration(a.config.EnvLongPollTimeout)*time.Second + shutdownTimeout
}

// waitStopped reports whether done is closed before the timeout.
func waitStopped(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// setupUpdates registers the webhook and starts its server, or removes a stale
// webhook in long polling mode.
func (a *App) setupUpdates() error {
	telegram, err := a.serviceProvider.Telegram()
	if err != nil {
		return err
	}
	if a.config.EnvRunMode != config.RunModeWebhook {
		return telegram.DeleteWebhook()
	}

	handler := a.serviceProvider.Handler()
	a.webhookServer = &http.Server{
		Addr:              a.config.EnvWebhookListen,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Webhook server started on: %s", a.config.EnvWebhookListen)
		if err := a.webhookServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start webhook server: %v", err)
		}
	}()

	path := strings.Replace(botHand.WebhookPath, "{secret}", a.serviceProvider.WebhookSecret(), 1)
	return telegram.SetWebhook(a.config.EnvWebhookURL + path)
}

// shutdown stops the webhook server, then flushes and closes the session storage.
func (a *App) shutdown() {
	if a.webhookServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.webhookServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Webhook server shutdown error")
		}
	}

	sessions, err := a.serviceProvider.Sessions(context.Background())
	if err == nil {
		if err = sessions.Close(); err != nil {
			logrus.Error("Error while saving sessions on shutdown: ", err)
		}
	}
	logrus.Info("Bot exited")
}
