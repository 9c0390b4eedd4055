package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/session"
	tokenstore "github.com/jmcleod/gatehouse/tokens/bbolt"
	"github.com/jmcleod/gatehouse/transport/httpapi"
)

var (
	serverURL string
	dataDir   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a session and access-control client",
	Long: `Gatehouse manages an authenticated session against a remote auth service:
login, registration, background token refresh and local credential storage.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the auth service")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for the local token store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gatehouse"
	}
	return filepath.Join(home, ".gatehouse")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newManager wires the real stack: persistent token store, HTTP transport,
// session manager. The caller must invoke the returned cleanup.
func newManager() (*session.Manager, func(), error) {
	passphrase := os.Getenv("GATEHOUSE_STORE_PASS")
	if passphrase == "" {
		return nil, nil, fmt.Errorf("GATEHOUSE_STORE_PASS must be set to unlock the local token store")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := tokenstore.NewStoreFromFile(filepath.Join(dataDir, "tokens.db"), passphrase)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger()
	transport := httpapi.New(serverURL,
		httpapi.WithTokenSource(store),
		httpapi.WithLogger(logger),
	)
	mgr := session.NewManager(transport, store, session.WithLogger(logger))

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing token store", "error", err)
		}
	}
	return mgr, cleanup, nil
}

func printSnapshot(snap session.Snapshot) {
	fmt.Printf("status: %s\n", snap.Status)
	if snap.User != nil {
		fmt.Printf("user:   %s (%s)\n", snap.User.Email, snap.User.ID)
		for role := range snap.User.Roles {
			fmt.Printf("role:   %s\n", role)
		}
	}
	if snap.Err != nil {
		fmt.Printf("error:  %v\n", snap.Err)
	}
}
