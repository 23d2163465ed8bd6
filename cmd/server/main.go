// Command server runs the courseai HTTP API: unified local and Google
// login, search history, admin views and the course analysis proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"gorm.io/driver/postgres"
	gormdb "gorm.io/gorm"

	ca "github.com/courseai/courseai"
	"github.com/courseai/courseai/genai"
	"github.com/courseai/courseai/oauth2"
	"github.com/courseai/courseai/stores"
	gormstores "github.com/courseai/courseai/stores/gorm"
	"github.com/courseai/courseai/web"
)

type config struct {
	Port           int      `env:"PORT" envDefault:"5000"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	DataDir        string   `env:"DATA_DIR" envDefault:"./data"`
	GoogleClientID string   `env:"GOOGLE_CLIENT_ID"`
	OAuthSecret    string   `env:"GOOGLE_CLIENT_SECRET"`
	OAuthCallback  string   `env:"GOOGLE_CALLBACK_URL"`
	AIBaseURL      string   `env:"AI_BASE_URL" envDefault:"https://router.huggingface.co/v1/chat/completions"`
	AIKey          string   `env:"HF_API_KEY"`
	AIModel        string   `env:"HF_MODEL" envDefault:"Qwen/Qwen2.5-7B-Instruct"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	ShutdownGrace  int      `env:"SHUTDOWN_GRACE_SECONDS" envDefault:"10"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	identityStore, historyStore, lister, err := buildStores(cfg, logger)
	if err != nil {
		return err
	}

	unifier := ca.NewUnifier(identityStore, ca.NewHasher(10))

	server := &web.Server{
		Unifier:    unifier,
		Identities: lister,
		Histories:  historyStore,
		Logger:     logger,
	}
	if cfg.GoogleClientID != "" {
		server.Verifier = ca.NewGoogleVerifier(cfg.GoogleClientID)
	}
	if cfg.GoogleClientID != "" && cfg.OAuthSecret != "" && cfg.OAuthCallback != "" {
		server.Flow = oauth2.NewGoogleFlow(cfg.GoogleClientID, cfg.OAuthSecret, cfg.OAuthCallback,
			browserLoginHandler(unifier, logger), logger)
	}
	if cfg.AIKey != "" {
		server.Analyzer = genai.NewClient(cfg.AIBaseURL, cfg.AIKey, cfg.AIModel)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Handler(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGrace)*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStores(cfg config, logger *slog.Logger) (ca.IdentityStore, ca.HistoryStore, ca.IdentityLister, error) {
	if cfg.DatabaseURL != "" {
		db, err := gormdb.Open(postgres.Open(cfg.DatabaseURL), &gormdb.Config{TranslateError: true})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := gormstores.AutoMigrate(db); err != nil {
			return nil, nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		logger.Info("using postgres stores")
		identities := gormstores.NewIdentityStore(db)
		return identities, gormstores.NewHistoryStore(db), identities, nil
	}

	logger.Info("using file system stores", "dir", cfg.DataDir)
	identities := stores.NewFSIdentityStore(cfg.DataDir)
	histories := stores.NewFSHistoryStore(cfg.DataDir)
	return identities, histories, identities, nil
}

// browserLoginHandler finishes the redirect flow: it resolves the claims to
// an account and redirects back into the app with the outcome.
func browserLoginHandler(unifier *ca.Unifier, logger *slog.Logger) oauth2.ClaimsHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, claims ca.FederatedClaims) {
		account, needsPassword, err := unifier.FederatedLogin(r.Context(), &claims)
		if err != nil {
			logger.Warn("federated login failed", "error", err)
			http.Redirect(w, r, "/login?error=google", http.StatusFound)
			return
		}
		target := "/?user=" + account.Username
		if needsPassword {
			target = "/setup-password?email=" + account.Email
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
