// Package cli is the kiosk's terminal front end. Operator codes are
// typed (or scanned) directly at the prompt; everything else is a
// slash-free command.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jcastellanos/comedor-kiosk/internal/common"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/app"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/config"
)

type CLI struct {
	app *app.App
	cfg *config.Config
	out *os.File
}

func New(a *app.App, cfg *config.Config) *CLI {
	return &CLI{app: a, cfg: cfg, out: os.Stdout}
}

// status renders the prompt suffix: connectivity and the meal being
// served, when there is one.
func (c *CLI) status() string {
	st := c.app.State()
	s := "offline"
	if st.Online {
		s = "online"
	}
	if st.ActiveMeal != nil {
		s = s + " " + st.ActiveMeal.Name
	}
	return fmt.Sprintf("(%s)", s)
}

func (c *CLI) Run(ctx context.Context) error {
	if err := c.app.Bootstrap(ctx); err != nil {
		return err
	}

	go c.app.StartOnlineStatusWatcher(ctx, c.cfg.OnlineCheckInterval)

	fmt.Fprintln(c.out, "Comedor kiosk ready (type 'help' for commands, or a user code)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(c.out, "kiosk %s> ", c.status())
		if !scanner.Scan() {
			return scanner.Err()
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Fprintln(c.out, "Type a user code to issue a ticket.")
			fmt.Fprintln(c.out, "Commands: sync, stats, recent, roster, period, seturl <url>, reseturl, exit")
		case "sync":
			c.sync(ctx)
		case "stats":
			c.stats()
		case "recent":
			c.recent()
		case "roster":
			c.roster(ctx)
		case "period":
			c.period(ctx)
		case "seturl":
			if len(args) == 0 {
				fmt.Fprintln(c.out, "Usage: seturl <url>")
				continue
			}
			c.setURL(ctx, args[0])
		case "reseturl":
			c.resetURL(ctx)
		case "exit", "quit":
			fmt.Fprintln(c.out, "Bye!")
			return nil
		default:
			c.issue(ctx, cmd)
		}
	}
}

func (c *CLI) issue(ctx context.Context, code string) {
	res, err := c.app.IssueTicket(ctx, code)
	if err != nil {
		fmt.Fprintln(c.out, c.app.State().Feedback.Message)
		return
	}
	if res.AlreadyIssued {
		fmt.Fprintf(c.out, "%s %s already got this meal\n", res.User.FirstName, res.User.LastName)
		return
	}
	fmt.Fprintf(c.out, "ticket issued for %s %s\n", res.User.FirstName, res.User.LastName)
}

func (c *CLI) sync(ctx context.Context) {
	sum, err := c.app.Sync(ctx, true)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrSyncInProgress):
			fmt.Fprintln(c.out, "a sync is already running")
		case errors.Is(err, common.ErrOffline):
			fmt.Fprintln(c.out, "no connection")
		default:
			fmt.Fprintf(c.out, "sync failed: %v\n", err)
		}
		return
	}
	fmt.Fprintf(c.out, "%s (downloaded %d, uploaded %d, pruned %d)\n",
		sum.Message, sum.Downloaded, sum.Uploaded, sum.Pruned)
	if sum.BackupPath != "" {
		fmt.Fprintf(c.out, "backup written to %s\n", sum.BackupPath)
	}
}

func (c *CLI) stats() {
	st := c.app.State()
	fmt.Fprintf(c.out, "tickets: %d total, %d pending, %d synced\n",
		st.Stats.Total, st.Stats.Pending, st.Stats.Synced)
}

func (c *CLI) recent() {
	st := c.app.State()
	if len(st.Recent) == 0 {
		fmt.Fprintln(c.out, "no tickets yet")
		return
	}
	for _, t := range st.Recent {
		mark := "synced"
		if t.SyncPending {
			mark = "pending"
		}
		fmt.Fprintf(c.out, "%s  %s %s  %s  %s\n", t.Code, t.FirstName, t.LastName, t.MealName, mark)
	}
}

func (c *CLI) roster(ctx context.Context) {
	if err := c.app.RefreshRoster(ctx); err != nil {
		fmt.Fprintf(c.out, "roster refresh failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "roster loaded: %d users\n", len(c.app.State().Roster))
}

func (c *CLI) period(ctx context.Context) {
	if err := c.app.RefreshPeriod(ctx); err != nil {
		fmt.Fprintf(c.out, "period refresh failed: %v\n", err)
		return
	}
	st := c.app.State()
	if st.Period == nil {
		fmt.Fprintln(c.out, "no period for today")
		return
	}
	fmt.Fprintf(c.out, "period %s (%s to %s)\n", st.Period.Name, st.Period.StartDate, st.Period.EndDate)
	for _, l := range st.Period.Links {
		fmt.Fprintf(c.out, "  %s %s-%s subsidy %s\n", l.Meal.Name, l.Meal.StartTime, l.Meal.EndTime, l.Subsidy)
	}
}

func (c *CLI) setURL(ctx context.Context, url string) {
	if err := c.app.SetAPIBaseURL(ctx, url); err != nil {
		fmt.Fprintf(c.out, "failed to save api url: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "api url set to %s\n", url)
}

func (c *CLI) resetURL(ctx context.Context) {
	if err := c.app.ResetAPIBaseURL(ctx); err != nil {
		fmt.Fprintf(c.out, "failed to reset api url: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "api url reset to %s\n", c.cfg.APIBaseURL)
}
