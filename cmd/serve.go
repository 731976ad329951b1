package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/contactform/internal/config"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/profile"
	"github.com/conneroisu/contactform/internal/sender"
	"github.com/conneroisu/contactform/internal/server"
	"github.com/conneroisu/contactform/internal/watcher"
)

const profileDebounce = 300 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the contact card server",
	Long: `Start the contact card server.

Each browser tab opens a websocket session that owns its own form state,
challenge handle and toast stack. Submissions are posted to the configured
form endpoint once the invisible challenge passes.

Examples:
  contactform serve --site-key KEY --endpoint https://formspree.io/f/ID
  contactform serve --port 3000 --profile ./profile.yml
  CONTACTFORM_SENDER_ENDPOINT=https://... contactform serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to")
	serveCmd.Flags().String("site-key", "", "reCAPTCHA site key")
	serveCmd.Flags().String("endpoint", "", "Form endpoint submissions are posted to")
	serveCmd.Flags().String("profile", "profile.yml", "Profile file with social links")
	serveCmd.Flags().Bool("no-watch", false, "Don't reload the profile when it changes")
	serveCmd.Flags().String("title", "Contact", "Page title")

	AddFlagValidation(serveCmd, "port", ValidatePort)
	AddFlagValidation(serveCmd, "profile", ValidateFileExists)

	bindFlags(serveCmd, map[string]string{
		"port":     "server.port",
		"host":     "server.host",
		"site-key": "recaptcha.site_key",
		"endpoint": "sender.endpoint",
		"profile":  "profile.path",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSender(); err != nil {
		return configError(err)
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Profile.Watch = false
	}
	title, _ := cmd.Flags().GetString("title")

	logger := cfg.Logger().WithComponent("cli")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := loadProfiles(cfg, logger)
	if err != nil {
		return configError(err)
	}

	if cfg.Profile.Watch && profiles.Path() != "" {
		fw, err := watcher.NewFileWatcher(profileDebounce, logger)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer fw.Stop()

		if err := profiles.Watch(ctx, fw); err != nil {
			logger.Warn(ctx, err, "profile hot reload disabled", "path", profiles.Path())
		} else if err := fw.Start(ctx); err != nil {
			logger.Warn(ctx, err, "profile hot reload disabled", "path", profiles.Path())
		}
	}

	snd, err := sender.New(sender.Options{
		Endpoint:       cfg.Sender.Endpoint,
		Timeout:        cfg.Sender.Timeout,
		SuccessMessage: cfg.Sender.SuccessMessage,
		FailureMessage: cfg.Sender.FailureMessage,
		Logger:         logger,
	})
	if err != nil {
		return configError(err)
	}

	srv, err := server.New(cfg, server.Options{
		Sender:   snd,
		Profiles: profiles,
		Logger:   logger,
		Title:    title,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving contact card at http://%s\n", cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return apperrors.NewEnhancedError(
				fmt.Sprintf("Failed to start server on %s: %v", cfg.Address(), err),
				err,
				apperrors.ServerStartError(err, cfg.Server.Port),
			)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func configError(err error) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = ".contactform.yml"
	}
	return apperrors.NewEnhancedError(
		fmt.Sprintf("Failed to load configuration: %v", err),
		err,
		apperrors.ConfigurationError(err.Error(), path),
	)
}

// loadProfiles opens the profile store. A missing file at the default path
// just means there are no social links.
func loadProfiles(cfg *config.Config, logger logging.Logger) (*profile.Store, error) {
	path := cfg.Profile.Path
	if path != "" && !viper.IsSet("profile.path") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Debug(context.Background(), "no profile file, serving without social links", "path", path)
			path = ""
		}
	}
	return profile.NewStore(path, logger)
}
