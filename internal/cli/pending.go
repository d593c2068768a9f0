package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"remindbot/internal/config"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

var (
	pendingUser  int64
	pendingLimit int
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List upcoming reminders stored in the database",
	RunE:  runPending,
}

func init() {
	pendingCmd.Flags().Int64Var(&pendingUser, "user", 0, "only show reminders of this Telegram user id")
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 50, "maximum rows (0 = all)")
}

func runPending(cmd *cobra.Command, args []string) error {
	// only the storage section matters here, so the bot token is not required
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return err
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return err
	}
	st, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy}, logx.Nop())
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	now := time.Now()
	notes, err := st.GetNotesWithFutureReminders(ctx, now)
	if err != nil {
		return err
	}
	if pendingUser != 0 {
		kept := notes[:0]
		for _, n := range notes {
			if n.OwnerID == pendingUser {
				kept = append(kept, n)
			}
		}
		notes = kept
	}
	if pendingLimit > 0 && len(notes) > pendingLimit {
		notes = notes[:pendingLimit]
	}

	zones := map[int64]string{}
	tzOf := func(userID int64) string {
		if tz, ok := zones[userID]; ok {
			return tz
		}
		tz := "UTC"
		if p, err := st.GetProfile(ctx, userID); err == nil && p != nil && p.Timezone != "" {
			tz = p.Timezone
		}
		zones[userID] = tz
		return tz
	}
	printPending(cmd.OutOrStdout(), notes, now, tzOf)
	return nil
}

var (
	idColor    = color.New(color.Bold)
	dueColor   = color.New(color.FgCyan)
	soonColor  = color.New(color.FgRed, color.Bold)
	seriesMark = color.New(color.FgYellow)
	faintColor = color.New(color.Faint)
)

func printPending(w io.Writer, notes []reminder.Note, now time.Time, tzOf func(userID int64) string) {
	if len(notes) == 0 {
		faintColor.Fprintln(w, "no pending reminders")
		return
	}
	for _, n := range notes {
		if n.DueDate == nil {
			continue
		}
		due := *n.DueDate
		left := due.Sub(now).Truncate(time.Minute)

		idColor.Fprintf(w, "#%-6d", n.ID)
		fmt.Fprint(w, " ")
		dueColor.Fprint(w, reminder.FormatDue(due, tzOf(n.OwnerID)))
		fmt.Fprint(w, "  ")
		if left < time.Hour {
			soonColor.Fprintf(w, "in %s", left)
		} else {
			fmt.Fprintf(w, "in %s", left)
		}
		if n.Recurring() {
			seriesMark.Fprint(w, "  ↻")
		}
		fmt.Fprintf(w, "  user=%d  %s\n", n.OwnerID, oneLine(n.Text, 60))
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
