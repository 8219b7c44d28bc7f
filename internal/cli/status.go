package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"spaceforces-client/internal/api"
	"spaceforces-client/internal/config"
	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/statusview"
)

// NewStatusCmd prints a quiz's live status to the terminal.
func NewStatusCmd(configPath *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status <quiz-id>",
		Short: "Show countdown and standings for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quiz id %q", args[0])
			}
			return runStatus(cmd.Context(), *configPath, quizID, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep refreshing once per second")
	return cmd
}

func runStatus(ctx context.Context, configPath string, quizID int64, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api base_url not configured")
	}
	client := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: config.TTLDuration(cfg.API.Timeout, 15*time.Second),
		Token:   cfg.API.Token,
	})

	quiz, err := client.Quiz(ctx, quizID)
	if err != nil {
		return err
	}

	if !watch {
		participants, err := client.Participants(ctx, quizID)
		if err != nil {
			log.Printf("participants unavailable: %v", err)
			participants = nil
		}
		printSnapshot(statusview.Build(quiz, participants, time.Now()))
		return nil
	}

	watcher := statusview.Watch(ctx, quiz, client, time.Second)
	defer watcher.Close()
	for {
		select {
		case snap, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			printSnapshot(snap)
		case <-ctx.Done():
			return nil
		}
	}
}

func printSnapshot(snap statusview.Snapshot) {
	switch snap.Status {
	case domain.StatusCreated:
		if snap.StartingNow {
			fmt.Printf("%s: starting now\n", snap.Quiz.Title)
		} else {
			fmt.Printf("%s: starts in %s\n", snap.Quiz.Title, snap.UntilStart)
		}
	case domain.StatusLive:
		fmt.Printf("%s: LIVE, %s remaining (%.1f%%), %d participants\n",
			snap.Quiz.Title, snap.Remaining, snap.Progress*100, len(snap.Standings))
	case domain.StatusFinished:
		fmt.Printf("%s: finished\n", snap.Quiz.Title)
		for _, row := range snap.Standings {
			fmt.Printf("  %2d. %-20s %d pts\n", row.Position, row.Participation.User.Username, row.Participation.Score)
		}
	}
}
