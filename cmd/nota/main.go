package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"note-assistant/internal/chat"
	"note-assistant/internal/config"
	"note-assistant/internal/logx"
	"note-assistant/internal/notesync"
	"note-assistant/internal/session"
	"note-assistant/internal/store"
	"note-assistant/internal/stream"
	"note-assistant/internal/tui"
)

const version = "1.0.0"

type env struct {
	cfg      config.Config
	log      *logx.Logger
	sessions *session.Manager
	client   *stream.Client
}

func buildEnv() (*env, error) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(&cfg)

	lp := logPath()
	_ = os.MkdirAll(filepath.Dir(lp), 0755)
	logOut, _ := os.OpenFile(lp, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	log := logx.New(logOut)

	root := cfg.DataDir
	if root == "" {
		root = store.DefaultRoot()
	}
	mgr := session.NewManager(&store.DiskStore{Root: root}, log)
	if err := mgr.Initialize(); err != nil {
		return nil, err
	}

	client := stream.NewClient(time.Duration(cfg.StreamTimeoutSec) * time.Second)
	return &env{cfg: cfg, log: log, sessions: mgr, client: client}, nil
}

func logPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nota.log")
	}
	return filepath.Join(base, "note-assistant", "nota.log")
}

func controllerOptions(cfg config.Config) chat.Options {
	return chat.Options{
		BackendURL:     cfg.BackendURL,
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		APIKey:         cfg.APIKey,
		TitleProvider:  cfg.TitleProvider,
		TitleModel:     cfg.TitleModel,
		TitleAPIKey:    cfg.TitleAPIKey,
		DeepThinking:   cfg.EnableDeepThinking,
		RenderInterval: time.Duration(cfg.RenderIntervalMs) * time.Millisecond,
	}
}

func main() {
	root := &cobra.Command{
		Use:     "nota",
		Short:   "Chat with your notes from the terminal",
		Long:    "nota is a terminal client for a note-taking AI assistant backend.\n\nUse without arguments for the interactive chat, or the subcommands for scripted use.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}

			bridge := tui.NewRenderBridge()
			ctrl := chat.NewController(e.sessions, e.client, bridge, e.log, controllerOptions(e.cfg))

			p := tea.NewProgram(tui.NewChatModel(e.sessions, ctrl, bridge), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			renderer := chat.NewTextRenderer(os.Stdout)
			ctrl := chat.NewController(e.sessions, e.client, renderer, e.log, controllerOptions(e.cfg))
			if err := ctrl.Send(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			current := e.sessions.CurrentSessionID()
			for _, meta := range e.sessions.AllSessions() {
				marker := " "
				if meta.SessionID == current {
					marker = "*"
				}
				fmt.Printf("%s %-24s %s  (%d messages)\n",
					marker, meta.SessionID, meta.SessionName, meta.MessageCount)
			}
			return nil
		},
	}

	newCmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a session and switch to it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			id, err := e.sessions.CreateSession(name)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <session-id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			return e.sessions.RenameSession(args[0], args[1])
		},
	}

	trashCmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and manage trashed sessions",
	}

	trashListCmd := &cobra.Command{
		Use:   "list",
		Short: "List trashed sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			items := e.sessions.TrashItems()
			if len(items) == 0 {
				fmt.Println("trash is empty")
				return nil
			}
			for _, item := range items {
				fmt.Printf("%-24s %s  deleted %s\n", item.SessionID, item.SessionName,
					time.UnixMilli(item.DeletedAt).Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	trashRestoreCmd := &cobra.Command{
		Use:   "restore <session-id>",
		Short: "Restore a session from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			if !e.sessions.RestoreSessionFromTrash(args[0]) {
				return fmt.Errorf("no trashed session %q", args[0])
			}
			fmt.Println("restored")
			return nil
		},
	}

	trashPurgeCmd := &cobra.Command{
		Use:   "purge <session-id>",
		Short: "Delete a trashed session permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			if !e.sessions.PermanentlyDeleteFromTrash(args[0]) {
				return fmt.Errorf("no trashed session %q", args[0])
			}
			fmt.Println("deleted")
			return nil
		},
	}

	trashClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the trash",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			n := e.sessions.ClearAllTrash()
			fmt.Printf("removed %d\n", n)
			return nil
		},
	}

	trashCmd.AddCommand(trashListCmd, trashRestoreCmd, trashPurgeCmd, trashClearCmd)

	syncCmd := &cobra.Command{
		Use:   "sync <file.md> [file.md...]",
		Short: "Push markdown notes to the backend index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv()
			if err != nil {
				return err
			}
			syncer := notesync.NewSyncer(e.cfg.BackendURL, e.cfg.APIKey,
				time.Duration(e.cfg.SyncDebounceMs)*time.Millisecond, e.log)
			syncer.EmbeddingProvider = e.cfg.EmbeddingProvider
			syncer.EmbeddingModel = e.cfg.EmbeddingModel

			ctx := context.Background()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if err := syncer.Sync(ctx, notesync.Note{
					Title:   title,
					Path:    path,
					Content: string(data),
				}); err != nil {
					return err
				}
				fmt.Printf("synced %s\n", path)
			}
			return nil
		},
	}

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the backend connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig("")
			if err != nil {
				return err
			}
			wizard := tui.NewSetupWizard(&cfg)
			p := tea.NewProgram(wizard)
			if _, err := p.Run(); err != nil {
				return err
			}
			if wizard.Saved() {
				fmt.Println("configuration saved")
			}
			return nil
		},
	}

	root.AddCommand(askCmd, sessionsCmd, newCmd, renameCmd, trashCmd, syncCmd, setupCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
