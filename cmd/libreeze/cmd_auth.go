package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"libreeze/internal/guard"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/user"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, register and manage your profile",
	}
	cmd.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newCheckEmailCmd(c),
		newLibraryOptionsCmd(c),
		newProfileCmd(c),
		newLogoutCmd(c),
	)
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, guard.LoginPath); err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			email, err := p.orPrompt(email, "Email: ")
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = p.password("Password: "); err != nil {
					return err
				}
			}

			sess, err := c.app.svc.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", sess.Identity.Email)

			next, err := c.app.guards.ConsumeRedirect()
			if err != nil {
				return err
			}
			c.app.nav.Navigate(next)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted without echo when omitted)")
	return cmd
}

var errPasswordMismatch = errors.New("passwords do not match")

func newRegisterCmd(c *cli) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/auth/register"); err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			name, err := p.orPrompt(name, "Full name: ")
			if err != nil {
				return err
			}
			email, err := p.orPrompt(email, "Email: ")
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = p.password("Password: "); err != nil {
					return err
				}
				confirm, err := p.password("Confirm password: ")
				if err != nil {
					return err
				}
				if confirm != password {
					return errPasswordMismatch
				}
			}

			if _, err := c.app.svc.SignUp(cmd.Context(), email, password, name); err != nil {
				return err
			}
			c.app.nav.Navigate("/auth/check-email")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted without echo when omitted)")
	return cmd
}

func newCheckEmailCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check-email",
		Short: "What to do after registering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/auth/check-email"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				"We sent you a confirmation link. Open it, then run `libreeze auth login`.")
			return nil
		},
	}
}

func newLibraryOptionsCmd(c *cli) *cobra.Command {
	var name, address, email, phone string
	cmd := &cobra.Command{
		Use:   "library-options",
		Short: "Create a library and become its administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/auth/library-options"); err != nil {
				return err
			}
			id, err := c.app.currentUser()
			if err != nil {
				return err
			}
			if email == "" {
				email = id.Email
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if name, err = p.orPrompt(name, "Library name: "); err != nil {
				return err
			}
			if address, err = p.orPrompt(address, "Address: "); err != nil {
				return err
			}

			lib, err := c.app.svc.CreateLibrary(cmd.Context(), id.ID, name, address, email, phone)
			if err != nil {
				return err
			}
			c.app.store.CheckAdminStatus(cmd.Context(), id.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s). You are its administrator.\n", lib.Name, lib.ID)
			c.app.nav.Navigate(guard.DashboardPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "library name")
	cmd.Flags().StringVar(&address, "address", "", "street address")
	cmd.Flags().StringVar(&email, "email", "", "contact email (defaults to yours)")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	return cmd
}

func newProfileCmd(c *cli) *cobra.Command {
	var name, email, photo string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/auth/profile"); err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := c.app.currentUser()
			if err != nil {
				return err
			}

			var update user.ProfileUpdate
			if name != "" {
				update.FullName = &name
			}
			if email != "" {
				update.Email = &email
			}
			if photo != "" {
				file, closeFn, err := openUpload(photo)
				if err != nil {
					return err
				}
				url, err := c.app.svc.UploadProfilePhoto(ctx, file, id.ID)
				_ = closeFn()
				if err != nil {
					return err
				}
				update.ProfilePhotoURL = &url
			}
			if !update.Empty() {
				if _, err := c.app.svc.UpdateUserProfile(ctx, id.ID, update); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
			}

			var (
				profile   user.User
				libraries []library.UserLibrary
				history   []lending.LendedBook
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				profile, err = c.app.svc.GetUserByID(gctx, id.ID)
				return err
			})
			g.Go(func() error {
				var err error
				libraries, err = c.app.svc.GetUserLibrarySummaries(gctx, id.ID)
				return err
			})
			g.Go(func() error {
				var err error
				history, err = c.app.svc.GetAllLendingHistory(gctx, id.ID)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile, libraries, lending.FilterByStatus(history, lending.StatusReturned))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new full name")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	cmd.Flags().StringVar(&photo, "photo", "", "path to a profile photo to upload")
	return cmd
}

func printProfile(w io.Writer, u user.User, libraries []library.UserLibrary, returned []lending.LendedBook) {
	fmt.Fprintf(w, "%s <%s>\n", u.FullName, u.Email)
	if p := deref(u.ProfilePhotoURL); p != "" {
		fmt.Fprintf(w, "Photo: %s\n", p)
	}
	fmt.Fprintf(w, "Member since %s\n\n", u.CreatedAt.Format(dateLayout))

	if len(libraries) == 0 {
		fmt.Fprintln(w, "You are not a member of any library.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LIBRARY\tMEMBERSHIP\tSINCE")
		for _, l := range libraries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", l.LibraryName, l.MembershipType, l.MembershipStartDate.Format(dateLayout))
		}
		_ = tw.Flush()
	}

	fmt.Fprintf(w, "\nReading history (%d returned)\n", len(returned))
	if len(returned) > 0 {
		printLendedBooks(w, returned)
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.svc.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
