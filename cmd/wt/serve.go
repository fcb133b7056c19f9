package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/logging"
	"github.com/zulandar/watchtower/internal/server"
	"github.com/zulandar/watchtower/internal/sms"
	"github.com/zulandar/watchtower/internal/sms/ringcentral"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SMS webhook service",
		Long:  "Logs into the SMS provider, serves the webhook and health endpoints, and runs the idle-conversation scan until interrupted.",
	}
	explicit := addConfigFlag(cmd, &configPath)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, configPath, explicit())
	}
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, explicit bool) error {
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cmd.ErrOrStderr()})
	log := logging.Component("serve")

	if cfg.SMS.Provider != "ringcentral" {
		return fmt.Errorf("serve needs sms.provider ringcentral (got %q); use 'wt chat' for the console", cfg.SMS.Provider)
	}
	rc := cfg.SMS.RingCentral
	adapter, err := ringcentral.New(ringcentral.Opts{
		Server:            rc.Server,
		ClientID:          rc.ClientID,
		ClientSecret:      rc.ClientSecret,
		JWT:               rc.JWT,
		FromNumber:        rc.FromNumber,
		VerificationToken: rc.VerificationToken,
		Logger:            logging.Component("ringcentral"),
	})
	if err != nil {
		return err
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, appOpts{Sender: adapter, DB: gormDB})
	if err != nil {
		return err
	}
	defer a.Close()

	daemon, err := sms.NewDaemon(sms.DaemonOpts{
		Adapter: adapter,
		Handler: a.engine,
		Logger:  logging.Component("sms"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("task", name).Msg("task failed")
				errOnce.Do(func() { firstErr = err })
			}
			cancel()
		}()
	}

	run("sms", daemon.Run)
	run("http", func(ctx context.Context) error {
		return server.Start(ctx, server.Opts{
			Addr:      cfg.Server.Addr,
			Version:   Version,
			Webhook:   adapter,
			Status:    a.engine,
			Incidents: a.incidents,
			ImagesDir: cfg.Images.Dir,
			Logger:    logging.Component("http"),
			Out:       cmd.OutOrStdout(),
		})
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.idle.Run(ctx)
	}()

	log.Info().
		Int("procedures", len(a.catalog.Procedures)).
		Int("supervisor_channels", a.notifier.Len()).
		Str("state_store", cfg.State.Store).
		Msg("watchtower running")

	wg.Wait()
	return firstErr
}
