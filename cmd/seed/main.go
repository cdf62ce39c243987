package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"libreeze/internal/book"
	"libreeze/internal/config"
	"libreeze/internal/lending"
	"libreeze/internal/library"
	"libreeze/internal/logger"
	"libreeze/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Ursula", "Terry", "Octavia", "Italo", "Chimamanda"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Le Guin", "Pratchett", "Butler", "Calvino", "Adichie"}
	publishers = []string{"Penguin", "HarperCollins", "Oxford", "MIT Press", "Gollancz", "Vintage"}
	words      = []string{"Silent", "Library", "River", "Winter", "Clock", "Garden", "Machine", "Ocean", "Letters", "City"}
)

func main() {
	count := flag.Int("books", 50, "number of books to add to the demo library")
	adminEmail := flag.String("admin-email", "admin@libreeze.local", "email of the seeded library admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := seed(ctx, pool, cfg.Database.QueryTimeout, *count, *adminEmail, log); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
}

func seed(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, count int, adminEmail string, log *zap.Logger) error {
	users := user.NewPostgresRepo(pool, timeout)
	libraries := library.NewPostgresRepo(pool, timeout)
	books := book.NewPostgresRepo(pool, timeout)
	lend := lending.NewPostgresRepo(pool, timeout)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	admin := &user.User{ID: uuid.NewString(), FullName: "Demo Admin", Email: adminEmail}
	member := &user.User{ID: uuid.NewString(), FullName: "Demo Member", Email: "member-" + admin.ID[:8] + "@libreeze.local"}
	for _, u := range []*user.User{admin, member} {
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
	}

	lib, err := libraries.Create(ctx, admin.ID, library.NewLibrary{
		Name:         "Demo Library",
		Address:      "1 Reading Row",
		ContactEmail: adminEmail,
	})
	if err != nil {
		return fmt.Errorf("create library: %w", err)
	}

	var holdings []string
	for i := 0; i < count; i++ {
		year := 1950 + rng.Intn(75)
		in := book.NewBook{
			ISBN:          fmt.Sprintf("978%010d", rng.Int63n(1e10)),
			Title:         words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))],
			Authors:       []string{firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]},
			Publisher:     publishers[rng.Intn(len(publishers))],
			PublishedYear: &year,
			LibraryID:     lib.ID,
			Copies:        1 + rng.Intn(3),
		}
		res, err := books.AddToLibrary(ctx, in)
		if err != nil {
			return fmt.Errorf("add book %s: %w", in.ISBN, err)
		}
		holdings = append(holdings, res.LibraryBookID)
	}

	lent := 0
	for i := 0; i < len(holdings) && i < 5; i++ {
		due := time.Now().Add(time.Duration(rng.Intn(28)-7) * 24 * time.Hour)
		if _, err := lend.Lend(ctx, lending.LendRequest{BookID: holdings[i], MemberID: member.ID, DueDate: due}); err != nil {
			return fmt.Errorf("lend %s: %w", holdings[i], err)
		}
		lent++
	}
	overdue, err := lend.MarkOverdue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}

	log.Info("seed complete",
		zap.String("library_id", lib.ID),
		zap.String("admin_id", admin.ID),
		zap.String("member_id", member.ID),
		zap.Int("books", len(holdings)),
		zap.Int("lent", lent),
		zap.Int64("overdue", overdue),
	)
	return nil
}
