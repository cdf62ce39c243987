package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"libreeze/internal/backend"
	"libreeze/internal/book"
	"libreeze/internal/isbnscan"

	"github.com/spf13/cobra"
)

func newBooksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and add books",
	}
	cmd.AddCommand(newBooksListCmd(c), newBooksAddCmd(c), newBooksShowCmd(c))
	return cmd
}

func newBooksListCmd(c *cli) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/books"); err != nil {
				return err
			}
			books, err := c.app.svc.GetBooks(cmd.Context(), search)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No books found.")
				return nil
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by title, author or ISBN")
	return cmd
}

func printBooks(w io.Writer, books []book.Book) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tISBN\tTITLE\tAUTHOR")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.ISBN, b.Title, b.Author)
	}
	_ = tw.Flush()
}

func newBooksShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/books/"+args[0]); err != nil {
				return err
			}
			b, err := c.app.svc.GetBookByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n  by %s\n  ISBN %s\n", b.Title, b.Author, b.ISBN)
			if p := deref(b.Publisher); p != "" {
				fmt.Fprintf(w, "  Publisher: %s\n", p)
			}
			if b.PublishedYear != nil {
				fmt.Fprintf(w, "  Published: %d\n", *b.PublishedYear)
			}
			if u := deref(b.CoverURL); u != "" {
				fmt.Fprintf(w, "  Cover: %s\n", u)
			}
			return nil
		},
	}
}

type addBookFlags struct {
	isbn      string
	title     string
	authors   []string
	publisher string
	year      int
	copies    int
	libraryID string
	cover     string
	scan      string
}

// prefill completes in from a catalog entry with the same ISBN, keeping
// whatever the user typed.
func prefill(in *book.NewBook, existing book.Book) {
	if in.Title == "" {
		in.Title = existing.Title
	}
	if len(in.Authors) == 0 && existing.Author != "" {
		in.Authors = []string{existing.Author}
	}
	if in.Publisher == "" {
		in.Publisher = deref(existing.Publisher)
	}
	if in.PublishedYear == nil {
		in.PublishedYear = existing.PublishedYear
	}
	if in.CoverURL == "" {
		in.CoverURL = deref(existing.CoverURL)
	}
}

func newBooksAddCmd(c *cli) *cobra.Command {
	var f addBookFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add copies of a book to a library you administer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.enter(cmd, "/books/add"); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			id, err := c.app.currentUser()
			if err != nil {
				return err
			}

			if f.scan != "" {
				f.isbn, err = scanISBN(f.scan)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Scanned ISBN %s.\n", f.isbn)
			}

			in := book.NewBook{
				ISBN:      f.isbn,
				Title:     f.title,
				Authors:   f.authors,
				Publisher: f.publisher,
				LibraryID: f.libraryID,
				Copies:    f.copies,
			}
			if f.year > 0 {
				in.PublishedYear = &f.year
			}

			existing, found, err := c.app.svc.GetBookByISBN(ctx, f.isbn)
			if err != nil {
				return err
			}
			if found {
				fmt.Fprintf(out, "ISBN %s is already catalogued as %q; adding copies.\n", existing.ISBN, existing.Title)
				prefill(&in, existing)
			}

			if in.LibraryID == "" {
				in.LibraryID, err = c.adminLibrary(cmd, id.ID)
				if err != nil {
					return err
				}
			}

			if f.cover != "" {
				file, closeFn, err := openUpload(f.cover)
				if err != nil {
					return err
				}
				in.CoverURL, err = c.app.svc.UploadBookCover(ctx, file, f.isbn)
				_ = closeFn()
				if err != nil {
					return err
				}
			}

			res, err := c.app.svc.AddBook(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added %q (book %s, holding %s).\n", in.Title, res.BookID, res.LibraryBookID)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.isbn, "isbn", "", "ISBN-10 or ISBN-13")
	fl.StringVar(&f.title, "title", "", "title")
	fl.StringArrayVar(&f.authors, "author", nil, "author name, repeat for several")
	fl.StringVar(&f.publisher, "publisher", "", "publisher")
	fl.IntVar(&f.year, "year", 0, "publication year")
	fl.IntVar(&f.copies, "copies", 1, "number of copies")
	fl.StringVar(&f.libraryID, "library", "", "library id (defaults to the first library you administer)")
	fl.StringVar(&f.cover, "cover", "", "path to a cover image to upload")
	fl.StringVar(&f.scan, "scan", "", "read the ISBN from a photo of the barcode (PNG, JPEG or GIF)")
	cmd.MarkFlagsOneRequired("isbn", "scan")
	cmd.MarkFlagsMutuallyExclusive("isbn", "scan")
	return cmd
}

func scanISBN(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	isbn, err := isbnscan.Decode(f)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w: %w", path, backend.ErrInvalidInput, err)
	}
	return isbn, nil
}

var errNoAdminLibrary = errors.New("you do not administer any library; create one with `libreeze auth library-options`")

func (c *cli) adminLibrary(cmd *cobra.Command, userID string) (string, error) {
	ms, err := c.app.svc.GetUserLibraries(cmd.Context(), userID)
	if err != nil {
		return "", err
	}
	for _, m := range ms {
		if m.IsAdmin {
			return m.LibraryID, nil
		}
	}
	return "", fmt.Errorf("add book: %w: %w", backend.ErrInvalidInput, errNoAdminLibrary)
}
