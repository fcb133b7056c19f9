package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/logging"
	"github.com/zulandar/watchtower/internal/sms"
)

func newChatCmd() *cobra.Command {
	var (
		configPath string
		phone      string
		offline    bool
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long: `Simulates a guard texting WatchTower. Each line you type is one SMS.
Replies, including supervisor alerts, are printed instead of sent.

Commands: /state shows the current procedure step, /idle runs one idle scan,
/quit exits.`,
	}
	explicit := addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&phone, "phone", "+15550100", "simulated guard phone number")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the reasoning service and use keyword rules only")
	cmd.Flags().BoolVar(&record, "record", false, "record incidents in the configured database")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, chatOpts{
			configPath: configPath,
			explicit:   explicit(),
			phone:      phone,
			offline:    offline,
			record:     record,
		})
	}
	return cmd
}

type chatOpts struct {
	configPath string
	explicit   bool
	phone      string
	offline    bool
	record     bool
}

func runChat(cmd *cobra.Command, opts chatOpts) error {
	cfg, err := loadConfig(opts.configPath, opts.explicit)
	if err != nil {
		return err
	}
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	interactive := isTerminal(in, out)

	// Keep the transcript readable: only warnings reach the terminal.
	level := "warn"
	if cfg.Logging.Level == "debug" || cfg.Logging.Level == "trace" {
		level = cfg.Logging.Level
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})

	if cfg.Escalation.SupervisorPhone == "" {
		cfg.Escalation.SupervisorPhone = "+15550199"
	}
	offline := opts.offline || (cfg.LLM.APIKey == "")

	console, err := sms.NewConsoleAdapter(in, out, opts.phone)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var gormDB *gorm.DB
	if opts.record {
		if gormDB, err = openDB(cfg); err != nil {
			return err
		}
		defer db.Close(gormDB)
	}

	a, err := buildApp(ctx, cfg, appOpts{Sender: console, DB: gormDB, Offline: offline})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := console.Connect(ctx); err != nil {
		return err
	}
	inbound, err := console.Listen(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "WatchTower chat as %s (%d procedures", opts.phone, len(a.catalog.Procedures))
	if offline {
		fmt.Fprint(out, ", offline")
	}
	fmt.Fprintln(out, "). Type /quit to exit.")

	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		var msg sms.InboundMessage
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case msg, ok = <-inbound:
		}
		if !ok {
			return nil
		}
		switch strings.ToLower(msg.Text) {
		case "/quit", "/exit":
			return nil
		case "/state":
			printState(ctx, out, a, opts.phone)
			continue
		case "/idle":
			if err := a.idle.ScanOnce(ctx); err != nil {
				fmt.Fprintf(out, "idle scan: %v\n", err)
			}
			continue
		}
		if err := a.engine.Handle(ctx, msg); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printState(ctx context.Context, out io.Writer, a *app, phone string) {
	st, ok, err := a.engine.State(ctx, phone)
	switch {
	case err != nil:
		fmt.Fprintf(out, "state: %v\n", err)
	case !ok:
		fmt.Fprintln(out, "No procedure in progress.")
	default:
		fmt.Fprintf(out, "%s: step %d of %d, retries %d, %d completed\n",
			st.Procedure.Title, st.Step, len(st.Procedure.Steps), st.Retries, len(st.Completed))
		if len(st.Menu) > 0 {
			fmt.Fprintln(out, "Waiting for a numbered menu reply.")
		}
	}
}

// isTerminal reports whether every stream is an interactive terminal.
func isTerminal(streams ...interface{}) bool {
	for _, s := range streams {
		f, ok := s.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return false
		}
	}
	return true
}
