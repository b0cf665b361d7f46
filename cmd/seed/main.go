// Package main provides a tool to seed the database with demo listings and
// swaps.
//
// It registers users across a few postcodes, lists books for each, and runs
// swaps through the full request, accept and complete flow so leaderboards,
// badges and dashboards have data.
//
// Usage:
//
//	DB_PATH=~/.booksswap/booksswap.db go run ./cmd/seed
//	DB_PATH=~/.booksswap/booksswap.db go run ./cmd/seed --users 12 --swaps 20
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/service"
	"github.com/booksswap/booksswap-server/internal/store/sqlite"
	"github.com/booksswap/booksswap-server/internal/validation"
)

var (
	userCount = flag.Int("users", 8, "Number of demo users to create")
	bookCount = flag.Int("books", 3, "Books listed per user")
	swapCount = flag.Int("swaps", 10, "Swaps to run to completion")
)

var postcodes = []string{"SW1A 1AA", "EC1A 1BB", "M1 1AE", "B33 8TH"}

var titles = []struct{ title, author string }{
	{"The Hobbit", "J.R.R. Tolkien"},
	{"Pride and Prejudice", "Jane Austen"},
	{"Matilda", "Roald Dahl"},
	{"Dune", "Frank Herbert"},
	{"The Gruffalo", "Julia Donaldson"},
	{"Never Let Me Go", "Kazuo Ishiguro"},
	{"Wolf Hall", "Hilary Mantel"},
	{"The Very Hungry Caterpillar", "Eric Carle"},
	{"Small Island", "Andrea Levy"},
	{"Atonement", "Ian McEwan"},
}

type seeder struct {
	store *sqlite.Store
	auth  *service.AuthService
	books *service.BookService
	swaps *service.SwapService
	rng   *rand.Rand
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/.booksswap/booksswap.db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	quiet := logger.Discard()
	s, err := sqlite.Open(dbPath, quiet)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	key, err := auth.LoadOrGenerateKey(dbPath + ".seed.key")
	if err != nil {
		log.Fatalf("Failed to load key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	v := validation.New()
	gate := billing.NewGate(s)
	awarder := badge.NewAwarder(s, nil, quiet)

	sd := &seeder{
		store: s,
		auth:  service.NewAuthService(s, tokens, v, notify.Discard{}, quiet),
		books: service.NewBookService(s, gate, awarder, nil, v, quiet),
		swaps: service.NewSwapService(s, gate, awarder, notify.Discard{}, v, quiet, service.SwapServiceConfig{}),
		rng:   rand.New(rand.NewPCG(uint64(os.Getpid()), 42)), //nolint:gosec // demo data
	}

	ctx := context.Background()
	users := sd.createUsers(ctx)
	listed := sd.createBooks(ctx, users)
	completed := sd.runSwaps(ctx, users, listed)

	fmt.Printf("\nDone: %d users, %d books, %d completed swaps\n", len(users), len(listed), completed)
}

func (sd *seeder) createUsers(ctx context.Context) []*domain.User {
	var users []*domain.User
	for n := range *userCount {
		resp, err := sd.auth.Register(ctx, service.RegisterRequest{
			Email:    fmt.Sprintf("reader%d@example.com", n+1),
			Password: "password123",
			Name:     fmt.Sprintf("Reader %d", n+1),
			Postcode: postcodes[n%len(postcodes)],
		})
		if err != nil {
			log.Printf("Skipping reader%d: %v", n+1, err)
			continue
		}
		if err := sd.store.UpdateSubscriptionStatus(ctx, resp.User.ID, domain.SubscriptionActive); err != nil {
			log.Fatalf("Failed to activate %s: %v", resp.User.ID, err)
		}
		users = append(users, resp.User)
		fmt.Printf("  created %s (%s)\n", resp.User.Email, resp.User.Postcode)
	}
	return users
}

func (sd *seeder) createBooks(ctx context.Context, users []*domain.User) []*domain.Book {
	var books []*domain.Book
	for _, u := range users {
		for range *bookCount {
			t := titles[sd.rng.IntN(len(titles))]
			bookType := domain.BookTypeAdult
			if sd.rng.IntN(3) == 0 {
				bookType = domain.BookTypeChildren
			}
			res, err := sd.books.Create(ctx, u.ID, service.CreateBookRequest{
				Title:  t.title,
				Author: t.author,
				Type:   bookType,
			})
			if err != nil {
				log.Printf("Failed to list book for %s: %v", u.ID, err)
				continue
			}
			books = append(books, res.Book)
		}
	}
	fmt.Printf("  listed %d books\n", len(books))
	return books
}

func (sd *seeder) runSwaps(ctx context.Context, users []*domain.User, books []*domain.Book) int {
	if len(users) < 2 {
		return 0
	}

	completed := 0
	for _, idx := range sd.rng.Perm(len(books)) {
		if completed >= *swapCount {
			break
		}
		book := books[idx]

		requester := users[sd.rng.IntN(len(users))]
		if requester.ID == book.OwnerID {
			continue
		}

		swap, err := sd.swaps.Request(ctx, requester.ID, service.CreateSwapRequest{BookID: book.ID})
		if err != nil {
			log.Printf("Request failed for %s: %v", book.ID, err)
			continue
		}
		if _, err := sd.swaps.Accept(ctx, book.OwnerID, swap.ID); err != nil {
			log.Printf("Accept failed for %s: %v", swap.ID, err)
			continue
		}
		res, err := sd.swaps.Complete(ctx, requester.ID, swap.ID)
		if err != nil {
			log.Printf("Complete failed for %s: %v", swap.ID, err)
			continue
		}
		completed++
		for userID, names := range res.NewBadges {
			fmt.Printf("  %s earned %v\n", userID, names)
		}
	}
	return completed
}
