// agentctl drives the contributor-matching agent service from the
// terminal: analyze an issue, implement the proposed solution, and
// inspect sessions and local history.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/contribmatch/agentstream/internal/agent"
	"github.com/contribmatch/agentstream/internal/config"
	"github.com/contribmatch/agentstream/internal/store"
	"github.com/contribmatch/agentstream/internal/telemetry"
	"github.com/contribmatch/agentstream/internal/workflow"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "Client for the contributor-matching agent service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			slog.SetDefault(logger)

			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newImplementCmd())
	root.AddCommand(newSessionsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newHealthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient() *agent.Client {
	return agent.NewClient(cfg.Agent.BaseURL,
		agent.WithToken(cfg.Agent.Token),
		agent.WithLogger(logger),
	)
}

func newAnalyzeCmd() *cobra.Command {
	var repoURL, title, body string
	var issue int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a GitHub issue and record the proposed solution",
		RunE: func(cmd *cobra.Command, args []string) error {
			shutdown, err := telemetry.Init("agentctl", logger)
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			wf := workflow.New(newClient())
			if err := wf.StartAnalysis(cmd.Context(), workflow.AnalyzeInput{
				RepoURL:     repoURL,
				IssueTitle:  title,
				IssueBody:   body,
				IssueNumber: issue,
			}); err != nil {
				return err
			}

			snap := watch(cmd.Context(), wf, workflow.PhaseAnalyzed)
			if snap.Phase == workflow.PhaseError {
				return fmt.Errorf("analysis failed: %s", snap.LastError)
			}

			fmt.Printf("\nSession: %s\n", snap.SessionID)
			if snap.Solution != nil {
				fmt.Printf("Summary: %s\n", snap.Solution.Data.Summary)
				if snap.Solution.Data.SuggestedFix != "" {
					fmt.Printf("Suggested fix: %s\n", snap.Solution.Data.SuggestedFix)
				}
			}

			return recordExchange(cmd.Context(), &store.Exchange{
				SessionID:       snap.SessionID,
				RepoURL:         repoURL,
				IssueNumber:     issue,
				IssueTitle:      title,
				Outcome:         "analyzed",
				SolutionSummary: solutionSummary(snap),
			})
		},
	}
	cmd.Flags().StringVar(&repoURL, "repo", "", "repository URL")
	cmd.Flags().StringVar(&title, "title", "", "issue title")
	cmd.Flags().StringVar(&body, "body", "", "issue body")
	cmd.Flags().IntVar(&issue, "issue", 0, "issue number")
	return cmd
}

func newImplementCmd() *cobra.Command {
	var sessionID, branch, commitMsg string

	cmd := &cobra.Command{
		Use:   "implement",
		Short: "Implement a previously analyzed solution and push a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			if branch == "" {
				branch = fmt.Sprintf("agentstream/fix-%d", time.Now().Unix())
			}
			token := cfg.GitHub.Token
			if token == "" {
				return fmt.Errorf("github token is required (set AGENTSTREAM_GITHUB_TOKEN)")
			}

			shutdown, err := telemetry.Init("agentctl", logger)
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			done := make(chan struct{})
			var result *agent.ResultEvent
			var failure string

			onEvent := func(ev agent.Event) {
				printEvent(ev)
				switch ev := ev.(type) {
				case agent.ResultEvent:
					result = &ev
				case agent.ErrorEvent:
					failure = ev.Message
				case agent.DoneEvent:
					close(done)
				}
			}
			onError := func(err error) {
				failure = err.Error()
				close(done)
			}

			cancel, err := newClient().Implement(cmd.Context(), &agent.ImplementRequest{
				SessionID:     sessionID,
				BranchName:    branch,
				GitHubToken:   token,
				CommitMessage: commitMsg,
			}, onEvent, onError)
			if err != nil {
				return err
			}
			defer cancel()

			select {
			case <-done:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			if failure != "" {
				return fmt.Errorf("implementation failed: %s", failure)
			}
			if result == nil {
				return fmt.Errorf("stream ended without a result")
			}

			fmt.Printf("\nBranch: %s\nBranch URL: %s\nOpen a PR: %s\n",
				result.Branch, result.BranchURL, result.PRURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID from a previous analyze")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name to create")
	cmd.Flags().StringVar(&commitMsg, "message", "", "custom commit message")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage server-side analysis sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := newClient().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Printf("%s  #%d %s  [%s]  %s\n",
					s.SessionID, s.IssueNumber, s.IssueTitle, s.Status, s.SolutionSummary)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newClient().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Session:  %s\nRepo:     %s\nIssue:    #%d %s\nStatus:   %s\nExpires:  %s\nSummary:  %s\n",
				s.SessionID, s.RepoURL, s.IssueNumber, s.IssueTitle, s.Status, s.ExpiresAt, s.SolutionSummary)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().DeleteSession(cmd.Context(), args[0])
		},
	})

	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List locally recorded exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.History.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			exchanges, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, ex := range exchanges {
				line := fmt.Sprintf("%s  #%d %s  [%s]",
					ex.CreatedAt.Format(time.RFC3339), ex.IssueNumber, ex.IssueTitle, ex.Outcome)
				if ex.PRURL != "" {
					line += "  " + ex.PRURL
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the agent service's health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClient().GetHealth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Status: %s (llm=%t sandbox=%t, %d active sessions)\n",
				h.Status, h.Checks.LLMConfigured, h.Checks.SandboxConfigured, h.ActiveSessions)
			return nil
		},
	}
}

// watch polls the workflow, printing log entries as they appear, until
// it reaches target or errors out.
func watch(ctx context.Context, wf *workflow.Workflow, target workflow.Phase) workflow.Snapshot {
	printed := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap := wf.Snapshot()
		for _, entry := range snap.Log[printed:] {
			fmt.Printf("[%3d%%] %-8s %s\n", snap.Progress, entry.Kind, entry.Message)
		}
		printed = len(snap.Log)

		if snap.Phase == target || snap.Phase == workflow.PhaseError {
			return snap
		}

		select {
		case <-ctx.Done():
			wf.Cancel()
			return wf.Snapshot()
		case <-ticker.C:
		}
	}
}

func printEvent(ev agent.Event) {
	switch ev := ev.(type) {
	case agent.StatusEvent:
		fmt.Printf("[%s] %s\n", ev.Step, ev.Message)
	case agent.ThinkingEvent:
		fmt.Printf("  … %s\n", ev.Content)
	case agent.ToolEvent:
		fmt.Printf("  > %s\n", ev.Name)
	case agent.DiffEvent:
		fmt.Println(ev.Data)
	case agent.ErrorEvent:
		fmt.Printf("error: %s\n", ev.Message)
	}
}

func solutionSummary(snap workflow.Snapshot) string {
	if snap.Solution == nil {
		return ""
	}
	return snap.Solution.Data.Summary
}

func recordExchange(ctx context.Context, ex *store.Exchange) error {
	st, err := store.New(cfg.History.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(ctx, ex)
}
