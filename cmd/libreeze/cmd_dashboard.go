package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"libreeze/internal/lending"
	"libreeze/internal/user"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dashboard is what the dashboard screen shows. Profile is nil when the
// profile could not be loaded; the loan stats are shown regardless.
type dashboard struct {
	Profile       *user.User
	IsAdmin       bool
	Current       []lending.LendedBook
	Overdue       []lending.LendedBook
	Returned      int
	TotalBorrowed int
}

func summarizeDashboard(profile *user.User, isAdmin bool, history []lending.LendedBook) dashboard {
	return dashboard{
		Profile:       profile,
		IsAdmin:       isAdmin,
		Current:       lending.FilterByStatus(history, lending.StatusBorrowed, lending.StatusOverdue),
		Overdue:       lending.FilterByStatus(history, lending.StatusOverdue),
		Returned:      len(lending.FilterByStatus(history, lending.StatusReturned)),
		TotalBorrowed: len(history),
	}
}

func newDashboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Your loans at a glance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/dashboard"); err != nil {
				return err
			}
			id, err := c.app.currentUser()
			if err != nil {
				return err
			}

			var (
				profile *user.User
				history []lending.LendedBook
				isAdmin bool
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				u, err := c.app.svc.GetUserByID(ctx, id.ID)
				if err != nil {
					c.app.log.Warn("load profile failed", zap.String("user_id", id.ID), zap.Error(err))
					return nil
				}
				profile = &u
				return nil
			})
			g.Go(func() error {
				var err error
				history, err = c.app.svc.GetAllLendingHistory(ctx, id.ID)
				return err
			})
			g.Go(func() error {
				var err error
				isAdmin, err = c.app.store.AwaitAdmin(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			printDashboard(cmd.OutOrStdout(), summarizeDashboard(profile, isAdmin, history))
			return nil
		},
	}
}

func printDashboard(w io.Writer, d dashboard) {
	if d.Profile != nil {
		fmt.Fprintf(w, "Welcome, %s\n", d.Profile.FullName)
	} else {
		fmt.Fprintln(w, "Welcome back (profile unavailable)")
	}
	if d.IsAdmin {
		fmt.Fprintln(w, "You administer a library: lending commands are available.")
	}
	fmt.Fprintf(w, "Borrowed: %d  Overdue: %d  Returned: %d  Total borrowed: %d\n",
		len(d.Current), len(d.Overdue), d.Returned, d.TotalBorrowed)
	if len(d.Current) > 0 {
		fmt.Fprintln(w)
		printLendedBooks(w, d.Current)
	}
}

func printLendedBooks(w io.Writer, books []lending.LendedBook) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tAUTHORS\tLIBRARY\tSTATUS\tBORROWED\tDUE")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.BookTitle, b.Authors, b.LibraryName, b.Status, b.BorrowDate.Format(dateLayout), formatDate(b.DueDate))
	}
	_ = tw.Flush()
}
