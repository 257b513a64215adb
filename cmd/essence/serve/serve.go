// Package servecmder provides the serve command running the HTTP server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/config"
	"github.com/muuya/essence-logic/pkg/history"
	"github.com/muuya/essence-logic/pkg/logger"
	"github.com/muuya/essence-logic/server"
)

type ServeCommander struct {
	listen      string
	environment string
	service     string
	model       string
	dataDir     string
	configPath  string
	debug       bool
	logger      *zap.Logger
}

const serveLongDesc string = `Run the Essence Logic HTTP server.

The server relays chat requests to the configured upstream model service,
streams responses back over SSE, and records exchanges under the data
directory. In development mode the config file is watched and changes are
applied without a restart.`

const serveShortDesc string = "Run the HTTP server"

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagEnvironment,
	config.FlagService,
	config.FlagModel,
	config.FlagDataDir,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configPath, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEnvironment, &cmder.environment)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagService, &cmder.service)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagDataDir, &cmder.dataDir)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configPath)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.Data.Dir, c.logger)
	if err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}

	// Reload re-resolves through the same viper so flag and environment
	// overrides survive a config file change.
	reload := func() (*config.Config, error) { return config.Refresh(v) }

	srv, err := server.New(cfg, reload, store, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer srv.Close()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Development mode: watch the config file and apply changes live.
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.IsDevelopment() {
		if path := v.ConfigFileUsed(); path != "" {
			go c.watchConfig(path, srv, stopWatch)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

// watchConfig reloads the server when the config file is written. The parent
// directory is watched because editors replace files on save, which would
// drop a watch on the file itself.
func (c *ServeCommander) watchConfig(path string, srv *server.Server, stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Error("creating config watcher failed", zap.Error(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		c.logger.Error("watching config dir failed", zap.Error(err))
		return
	}

	c.logger.Info("watching config file for changes", zap.String("path", path))

	for {
		select {
		case <-stop:
			return
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := srv.Reload(); err != nil {
				c.logger.Error("config reload failed", zap.Error(err))
			}
		case err := <-watcher.Errors:
			c.logger.Error("config watcher error", zap.Error(err))
		}
	}
}
