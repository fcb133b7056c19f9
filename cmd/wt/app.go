package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/config"
	"github.com/zulandar/watchtower/internal/conversation"
	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/escalation"
	"github.com/zulandar/watchtower/internal/intent"
	"github.com/zulandar/watchtower/internal/knowledge"
	"github.com/zulandar/watchtower/internal/llm"
	"github.com/zulandar/watchtower/internal/logging"
	"github.com/zulandar/watchtower/internal/notify"
	"github.com/zulandar/watchtower/internal/notify/discord"
	"github.com/zulandar/watchtower/internal/notify/github"
	"github.com/zulandar/watchtower/internal/notify/slack"
	"github.com/zulandar/watchtower/internal/reporting"
	"github.com/zulandar/watchtower/internal/sms"
)

// defaultConfigPath is used when --config is not given.
const defaultConfigPath = "watchtower.yaml"

// loadConfig reads path. When path is the default and the file does not
// exist, built-in defaults are used so local commands work without setup.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens and migrates the configured database.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		db.Close(gormDB)
		return nil, err
	}
	return gormDB, nil
}

// appOpts selects how much of the stack buildApp wires.
type appOpts struct {
	Sender  sms.Sender
	DB      *gorm.DB   // nil disables persistence: memory store, no reporting
	LLM     llm.Client // overrides the configured provider when set
	Offline bool       // no reasoning service; keyword fallbacks only
}

// app is the wired conversation stack shared by serve and chat.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	engine    *conversation.Engine
	idle      *conversation.IdleWatcher
	notifier  *notify.Multi
	recorder  *reporting.Async
	incidents *reporting.Store
}

func buildApp(ctx context.Context, cfg *config.Config, opts appOpts) (*app, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	client := opts.LLM
	switch {
	case client != nil:
	case opts.Offline:
		client = llm.Func(func(context.Context, llm.Request) (string, error) {
			return "", llm.ErrUnavailable
		})
	default:
		client, err = llm.New(ctx, llm.Opts{
			Provider:  cfg.LLM.Provider,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			Timeout:   cfg.LLM.Timeout,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
	}

	classifier, err := intent.NewClassifier(intent.ClassifierOpts{
		Client: client,
		Logger: logging.Component("intent"),
	})
	if err != nil {
		return nil, err
	}

	doc := ""
	if cfg.Knowledge.Path != "" {
		if doc, err = knowledge.LoadDocument(cfg.Knowledge.Path); err != nil {
			return nil, err
		}
	}
	answerer, err := knowledge.New(knowledge.Opts{
		Client:    client,
		Document:  doc,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logging.Component("knowledge"),
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, catalog: cat}

	var store conversation.Store = conversation.NewMemoryStore()
	var next reporting.Recorder = reporting.Nop{}
	if opts.DB != nil {
		rs, err := reporting.NewStore(opts.DB)
		if err != nil {
			return nil, err
		}
		a.incidents = rs
		next = rs
		if cfg.State.Store == "database" {
			if store, err = conversation.NewDBStore(opts.DB, cat); err != nil {
				return nil, err
			}
		}
	}
	a.recorder = reporting.NewAsync(reporting.AsyncOpts{
		Next:   next,
		Logger: logging.Component("reporting"),
	})

	a.notifier, err = buildNotifiers(ctx, cfg, opts.Sender)
	if err != nil {
		a.recorder.Close()
		return nil, err
	}

	esc, err := escalation.New(escalation.Opts{
		Notifier: a.notifier,
		Recorder: a.recorder,
		Logger:   logging.Component("escalation"),
	})
	if err != nil {
		a.recorder.Close()
		return nil, err
	}

	a.engine, err = conversation.NewEngine(conversation.EngineOpts{
		Store:               store,
		Catalog:             cat,
		Classifier:          classifier,
		Sender:              opts.Sender,
		Escalator:           esc,
		Recorder:            a.recorder,
		Answerer:            answerer,
		Logger:              logging.Component("engine"),
		ConfidenceThreshold: cfg.LLM.ConfidenceThreshold,
		MaxRetries:          cfg.Conversation.MaxRetries,
		HistoryLimit:        cfg.Conversation.HistoryLimit,
		ImageBaseURL:        cfg.Images.BaseURL,
	})
	if err != nil {
		a.recorder.Close()
		return nil, err
	}

	a.idle, err = conversation.NewIdleWatcher(conversation.IdleWatcherOpts{
		Engine:       a.engine,
		Notifier:     a.notifier,
		Recorder:     a.recorder,
		Logger:       logging.Component("idle"),
		Schedule:     cfg.Idle.ScanSchedule,
		Timeout:      cfg.Idle.Timeout,
		AbandonAfter: cfg.Idle.AbandonAfter,
	})
	if err != nil {
		a.recorder.Close()
		return nil, err
	}
	return a, nil
}

// buildNotifiers wires every configured supervisor channel.
func buildNotifiers(ctx context.Context, cfg *config.Config, sender sms.Sender) (*notify.Multi, error) {
	esc := cfg.Escalation
	var list []notify.Notifier

	if esc.SupervisorPhone != "" && sender != nil {
		n, err := notify.NewSMSNotifier(sender, esc.SupervisorPhone)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	if esc.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{BotToken: esc.Slack.BotToken, ChannelID: esc.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	if esc.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  esc.Discord.BotToken,
			ChannelID: esc.Discord.ChannelID,
			Logger:    logging.Component("discord"),
		})
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	if esc.GitHub.Token != "" {
		n, err := github.New(ctx, github.Opts{
			Token:  esc.GitHub.Token,
			Owner:  esc.GitHub.Owner,
			Repo:   esc.GitHub.Repo,
			Labels: esc.GitHub.Labels,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}

	m := notify.NewMulti(logging.Component("notify"), list...)
	if m.Len() == 0 {
		logging.Logger().Warn().Msg("no supervisor channels configured; escalations are only logged")
	}
	return m, nil
}

// Close flushes pending records.
func (a *app) Close() {
	a.recorder.Close()
}
