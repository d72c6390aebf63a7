package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brattlof/userview/internal/app/config"
	"github.com/brattlof/userview/internal/app/render"
	"github.com/brattlof/userview/internal/app/server"
	"github.com/brattlof/userview/internal/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "userview",
	Short:   "userview - user list view for a users service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the user list page",
	Long: `Serve the user list page. The page posts new users to the users
service, loads the full list from it, and receives appended rows live
over a websocket.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoad(cmd)

		port, _ := cmd.Flags().GetInt("port")
		if port != 0 {
			cfg.App.Port = port
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.File != "" {
			override, _ := cmd.Flags().GetString("log-level")
			w, err := config.NewWatcher(cfg.File, func(next *config.Config) {
				level := reloadedLevel(next, override)
				logLevel.Set(level)
				slog.Info("Log level updated", "level", level.String())
			})
			if err != nil {
				slog.Warn("Config watcher unavailable", "error", err)
			} else if err := w.Start(ctx); err != nil {
				slog.Warn("Config watcher failed", "error", err)
			} else {
				defer w.Close()
			}
		}

		ctl := newController(cfg)
		live := server.NewLiveHub()

		srv := server.New(cfg, ctl, live, version)
		srv.SetupMiddlewares()
		srv.SetupRoutes()

		if err := srv.Run(ctx); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch all users and print them as table rows",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoad(cmd)
		format, _ := cmd.Flags().GetString("format")

		ctl := newController(cfg)
		ctl.RequestUserList(cmd.Context()).Wait()

		printRows(cmd, render.ParseFormat(format), ctl.Table().Rows())
	},
}

var addCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Add a user and print the row it renders as",
	Long: `Add a user to the users service. The printed row is built from the
given username, not from the service's answer. When the call fails nothing
is printed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoad(cmd)
		format, _ := cmd.Flags().GetString("format")

		ctl := newController(cfg)
		ctl.RequestAddUser(cmd.Context(), client.StaticField(args[0])).Wait()

		rows := ctl.Table().Rows()
		if len(rows) == 0 {
			return
		}
		printRows(cmd, render.ParseFormat(format), rows)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("userview v%s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")

	serveCmd.Flags().IntP("port", "p", 0, "Port to serve on (default from config)")

	listCmd.Flags().StringP("format", "f", "html", "Output format (html, text, json)")
	addCmd.Flags().StringP("format", "f", "html", "Output format (html, text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mustLoad(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	slog.SetDefault(setupLogger(cfg))
	return cfg
}

// reloadedLevel is the log level after a config reload. A --log-level flag
// keeps winning over the file.
func reloadedLevel(next *config.Config, override string) slog.Level {
	if override != "" {
		next.Logging.Level = override
	}
	return next.LogLevel()
}

func newController(cfg *config.Config) *client.Controller {
	hc := &http.Client{Timeout: cfg.UpstreamTimeout()}
	api := client.New(cfg.Upstream.BaseURL,
		client.WithHTTPClient(hc),
		client.WithLogger(slog.Default()),
	)
	table := render.NewTable(render.WithReplaceOnList(cfg.Rendering.ReplaceOnList))
	return client.NewController(api, table, client.WithControllerLogger(slog.Default()))
}

func printRows(cmd *cobra.Command, format render.Format, rows []render.Row) {
	r := render.NewRenderer(format)
	if err := r.Rows(cmd.Context(), os.Stdout, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering rows: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	logLevel.Set(cfg.LogLevel())
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// stdout carries rendered rows for list/add, so logs go to stderr.
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
