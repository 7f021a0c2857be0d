package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"church-checkin/config"
	"church-checkin/internal/auth"
	"church-checkin/internal/client"
	"church-checkin/internal/models"
	"church-checkin/internal/poller"
)

var watchFlags = struct {
	date   string
	page   int
	secret string
}{}

func watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the attendance dashboard, refreshing periodically",
		Long: "Follow the attendance dashboard, refreshing periodically.\n" +
			"Type a date (YYYY-MM-DD) and press enter to switch days; an empty line returns to today.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRun(cmd, config.FromContext(cmd.Context()))
		},
	}
	cmd.Flags().StringVar(&watchFlags.date, "date", "", "service day to show (default today)")
	cmd.Flags().IntVar(&watchFlags.page, "page", 1, "attendee list page")
	cmd.Flags().StringVar(&watchFlags.secret, "secret", "", "admin secret used to obtain a session token")
	return cmd
}

func watchRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.ServerURL,
		client.WithToken(cfg.DashboardToken),
		client.WithLogger(logger),
	)
	if watchFlags.secret != "" {
		if _, err := api.Login(ctx, auth.RoleAdmin, watchFlags.secret); err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
	}
	fetch := func(ctx context.Context, date string) (*models.DashboardStats, error) {
		return api.Dashboard(ctx, watchFlags.page, date)
	}
	out := cmd.OutOrStdout()
	render := func(stats *models.DashboardStats) {
		renderDashboard(out, stats, time.Now(), loc)
	}

	initial, err := fetch(ctx, watchFlags.date)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	p := poller.New(fetch, render, cfg.PollInterval, logger)
	p.Start(ctx, watchFlags.date, initial)
	defer p.Stop()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			if line != "" {
				if _, err := time.Parse(models.ServiceDayLayout, line); err != nil {
					fmt.Fprintf(out, "invalid date %q, expected YYYY-MM-DD\n", line)
					continue
				}
			}
			p.SetDate(line)
		}
	}
}

// renderDashboard prints stats with times in the operating timezone
func renderDashboard(w io.Writer, stats *models.DashboardStats, refreshedAt time.Time, loc *time.Location) {
	fmt.Fprintf(w, "\nAttendance %s  (refreshed %s)\n", stats.Date, refreshedAt.In(loc).Format("15:04:05"))
	fmt.Fprintf(w, "Present: %d of %d members\n", stats.TotalAttendance, stats.TotalIdentities)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, group := range []struct {
		title string
		items []models.Breakdown
	}{
		{"MINISTRY", stats.Ministries},
		{"NETWORK", stats.Networks},
	} {
		if len(group.items) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\tCOUNT\n", group.title)
		for _, item := range group.items {
			fmt.Fprintf(tw, "%s\t%d\n", item.Name, item.Count)
		}
	}
	if len(stats.Attendees) > 0 {
		fmt.Fprintf(tw, "\nNAME\tMINISTRY\tNETWORK\tTIME\n")
		for _, a := range stats.Attendees {
			fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n",
				a.FirstName, a.LastName, a.Ministry, a.Network, a.RecordedAt.In(loc).Format("15:04"))
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Page %d of %d\n", stats.Page, stats.TotalPages)
}
