package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"libreeze/internal/lending"
	"libreeze/internal/user"

	"github.com/spf13/cobra"
)

const defaultLoanPeriod = 14 * 24 * time.Hour

func newLendingCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lending",
		Short: "Lend and take back books (library admins)",
	}
	cmd.AddCommand(
		newLendCmd(c),
		newReturnCmd(c),
		newHistoryCmd(c),
		newMembersCmd(c),
	)
	return cmd
}

// parseDue accepts YYYY-MM-DD in local time; empty means the default loan period.
func parseDue(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.Add(defaultLoanPeriod), nil
	}
	d, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("due date %q: want YYYY-MM-DD", s)
	}
	// Due at the end of the given day.
	return d.Add(24*time.Hour - time.Second), nil
}

func newLendCmd(c *cli) *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "lend <library-book-id> <member-id>",
		Short: "Lend a copy to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/lending/lend"); err != nil {
				return err
			}
			dueAt, err := parseDue(due, time.Now())
			if err != nil {
				return err
			}
			tx, err := c.app.svc.LendBook(cmd.Context(), args[0], args[1], dueAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lent: transaction %s, due %s.\n", tx.ID, formatDate(tx.DueDate))
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD (default two weeks from now)")
	return cmd
}

func newReturnCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "return <transaction-id>",
		Short: "Record a returned book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/lending/return"); err != nil {
				return err
			}
			tx, err := c.app.svc.ReturnBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Returned: transaction %s on %s.\n", tx.ID, formatDate(tx.ReturnedDate))
			return nil
		},
	}
}

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		member  string
		current bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Lending history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/lending/history"); err != nil {
				return err
			}
			var (
				records []lending.Record
				err     error
			)
			if current {
				records, err = c.app.svc.GetCurrentBorrowings(cmd.Context(), member)
			} else {
				records, err = c.app.svc.GetLendingHistory(cmd.Context(), member)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No lending records.")
				return nil
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "only this member's transactions")
	cmd.Flags().BoolVar(&current, "current", false, "only borrowed and overdue books")
	return cmd
}

func printRecords(w io.Writer, records []lending.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tTITLE\tMEMBER\tSTATUS\tBORROWED\tDUE\tRETURNED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Book.Title, r.Member.FullName, r.Status,
			r.BorrowedDate.Format(dateLayout), formatDate(r.DueDate), formatDate(r.ReturnedDate))
	}
	_ = tw.Flush()
}

func newMembersCmd(c *cli) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Find a member to lend to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/lending/members"); err != nil {
				return err
			}
			users, err := c.app.svc.GetUsers(cmd.Context(), search)
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by name or email")
	return cmd
}

func printUsers(w io.Writer, users []user.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.FullName, u.Email)
	}
	_ = tw.Flush()
}
