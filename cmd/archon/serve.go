package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/archon-run/archon/internal/artifactsync"
	"github.com/archon-run/archon/internal/assistant"
	assistantclaude "github.com/archon-run/archon/internal/assistant/claude"
	assistantmock "github.com/archon-run/archon/internal/assistant/mock"
	assistantopencode "github.com/archon-run/archon/internal/assistant/opencode"
	"github.com/archon-run/archon/internal/command"
	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/db"
	"github.com/archon-run/archon/internal/db/repositories"
	"github.com/archon-run/archon/internal/gitservice"
	"github.com/archon-run/archon/internal/isolation"
	"github.com/archon-run/archon/internal/lock"
	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/models"
	"github.com/archon-run/archon/internal/orchestrator"
	"github.com/archon-run/archon/internal/platform/discord"
	"github.com/archon-run/archon/internal/platform/github"
	"github.com/archon-run/archon/internal/platform/slack"
	"github.com/archon-run/archon/internal/platform/telegram"
	"github.com/archon-run/archon/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator: start every enabled platform adapter and the webhook server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	repos := repositories.New(database)
	git := gitservice.New(cfg.Worktree.BaseDir)

	provider := isolation.NewWorktreeProvider(git)
	cleanup := isolation.NewCleanupService(repos.Environments, git)
	resolver := isolation.NewResolver(repos.Environments, git, provider, cleanup)

	syncer := artifactsync.New(git)
	router := command.New(repos.Conversations, repos.Codebases, repos.Sessions, repos.Templates)

	assistants := buildAssistants(cfg)
	executor := newWorkflowExecutor(repos.Codebases, assistants)

	orch := orchestrator.New(repos, lock.New(cfg.Concurrency.GlobalLimit), git, resolver, syncer, router, assistants, executor)

	engine := gin.New()
	engine.Use(gin.Recovery())

	var adapters []func(context.Context) error

	if cfg.Platforms.Telegram.Enabled {
		adapter, err := telegram.New(telegram.Config{
			Token:          cfg.Platforms.Telegram.Token,
			AllowedUserIDs: cfg.Platforms.Telegram.AllowedUserIDs,
		})
		if err != nil {
			return fmt.Errorf("init telegram: %w", err)
		}
		adapters = append(adapters, func(ctx context.Context) error {
			adapter.Listen(ctx, func(conversationID, text string) {
				orch.Dispatch(orchestrator.Message{Platform: adapter, ConversationID: conversationID, Text: text})
			})
			return nil
		})
	}

	if cfg.Platforms.Discord.Enabled {
		adapter, err := discord.New(discord.Config{
			BotToken:       cfg.Platforms.Discord.BotToken,
			AllowedUserIDs: cfg.Platforms.Discord.AllowedUserIDs,
		})
		if err != nil {
			return fmt.Errorf("init discord: %w", err)
		}
		adapters = append(adapters, func(ctx context.Context) error {
			return adapter.Listen(ctx, func(conversationID, text string) {
				orch.Dispatch(orchestrator.Message{Platform: adapter, ConversationID: conversationID, Text: text})
			})
		})
	}

	if cfg.Platforms.Slack.Enabled {
		adapter := slack.New(slack.Config{
			BotToken:   cfg.Platforms.Slack.BotToken,
			AppToken:   cfg.Platforms.Slack.AppToken,
			AllowedIDs: cfg.Platforms.Slack.AllowedIDs,
		})
		adapters = append(adapters, func(ctx context.Context) error {
			return adapter.Listen(ctx, func(conversationID, text, threadTS string) {
				orch.Dispatch(orchestrator.Message{Platform: adapter, ConversationID: conversationID, Text: text})
			})
		})
	}

	if cfg.Platforms.GitHub.Enabled {
		adapter := github.New(github.Config{
			Token:         cfg.Platforms.GitHub.Token,
			WebhookSecret: cfg.Platforms.GitHub.WebhookSecret,
			AllowedUsers:  cfg.Platforms.GitHub.AllowedUsers,
		})
		adapter.RegisterRoutes(engine, func(evt github.Event) {
			orch.Dispatch(orchestrator.Message{
				Platform:       adapter,
				ConversationID: evt.ConversationID,
				Text:           evt.Text,
				IssueContext:   evt.IssueContext,
				IsolationHints: githubIsolationHints(evt),
			})
		})
	}

	gc := cron.New()
	if _, err := gc.AddFunc("@hourly", func() { runWorktreeGC(ctx, repos, git) }); err != nil {
		return fmt.Errorf("schedule worktree GC: %w", err)
	}
	gc.Start()
	defer gc.Stop()

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.APIPort), Handler: engine}
	go func() {
		logging.Info("archon serving webhooks on :%d", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("webhook server: %v", err)
		}
	}()

	for _, listen := range adapters {
		go func(listen func(context.Context) error) {
			if err := listen(ctx); err != nil {
				logging.Error("platform adapter stopped: %v", err)
			}
		}(listen)
	}

	<-ctx.Done()
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildAssistants(cfg *config.Config) map[string]assistant.Client {
	return map[string]assistant.Client{
		"claude": assistantclaude.New(assistantclaude.Config{
			APIKey: cfg.Assistants.Claude.APIKey,
			Model:  cfg.Assistants.Claude.Model,
		}),
		"opencode": assistantopencode.New(assistantopencode.Config{
			APIKey:  cfg.Assistants.OpenCode.APIKey,
			BaseURL: cfg.Assistants.OpenCode.BaseURL,
			Model:   cfg.Assistants.OpenCode.Model,
		}),
		"mock": assistantmock.New(),
	}
}

// githubIsolationHints derives IsolationHints from a normalized webhook
// event: PR events hint at "pr"-scoped isolation keyed by the
// conversation id and carry the PR branch/SHA, everything else (issue/issue-comment) is left nil so the resolver
// defaults to thread-scoped isolation keyed by the conversation id.
func githubIsolationHints(evt github.Event) *models.IsolationHints {
	if !evt.IsPullRequest {
		return nil
	}
	return &models.IsolationHints{
		WorkflowType: string(models.WorkflowPR),
		PRBranch:     evt.PRBranch,
		PRSHA:        evt.PRSHA,
		IsForkPR:     evt.IsForkPR,
	}
}

// runWorktreeGC reclaims merged, clean worktrees across every codebase so
// isolation environments never silently pile up against
// isolation.MaxWorktreesPerCodebase between conversations.
func runWorktreeGC(ctx context.Context, repos *repositories.Repositories, git gitservice.GitService) {
	cleanup := isolation.NewCleanupService(repos.Environments, git)
	codebases, err := repos.Codebases.List()
	if err != nil {
		logging.Error("worktree gc: list codebases: %v", err)
		return
	}
	for _, cb := range codebases {
		canonical, err := git.GetCanonicalRepoPath(cb.DefaultCwd)
		if err != nil {
			continue
		}
		if n, err := cleanup.CleanupToMakeRoom(ctx, cb.ID, canonical); err != nil {
			logging.Error("worktree gc: codebase %s: %v", cb.Name, err)
		} else if n > 0 {
			logging.Info("worktree gc: codebase %s reclaimed %d worktree(s)", cb.Name, n)
		}
	}
}
