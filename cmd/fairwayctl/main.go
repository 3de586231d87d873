// Command fairwayctl holds operator tasks for a fairway deployment: seeding
// the catalog, hashing the admin password, listing clubs and load testing a
// running server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/catalog/seed"
	"github.com/okian/fairway/internal/config"
	"github.com/okian/fairway/internal/loadgen"
	"github.com/okian/fairway/pkg/logger"
)

const (
	defaultReviews     = 1000
	defaultTimeout     = 30 * time.Second
	defaultSettle      = time.Minute
	defaultDuplicates  = 20
	defaultClubsLimit  = 50
	loadTestDeadline   = 10 * time.Minute
	workersPerCPU      = 2
	defaultLoadTestURL = "http://localhost:8080"
)

var errUsage = errors.New("usage")

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			os.Stderr.WriteString("fairwayctl: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errUsage
	}
	switch args[0] {
	case "seed":
		return runSeed(ctx, args[1:], stdout)
	case "hash-password":
		return runHashPassword(args[1:], stdin, stdout)
	case "clubs":
		return runClubs(ctx, args[1:], stdout)
	case "loadtest":
		return runLoadTest(ctx, args[1:], stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func usage(w io.Writer) {
	_, _ = io.WriteString(w, `fairwayctl manages a fairway deployment.

Usage:
  fairwayctl <command> [flags]

Commands:
  seed            Load the bundled catalog into the configured store
  hash-password   Print a bcrypt hash for FAIRWAY_ADMIN_PASSWORD_HASH
  clubs           List clubs in the configured store
  loadtest        Submit synthetic reviews to a running server

The store is configured like the server: FAIRWAY_CONFIG and FAIRWAY_* variables.

Examples:
  fairwayctl seed -years 5
  echo -n s3cret | fairwayctl hash-password
  fairwayctl clubs -type Driver -limit 10
  fairwayctl clubs -q "titleist tsr"
  fairwayctl loadtest -url http://localhost:8080 -reviews 5000 -user admin -password s3cret
`)
}

// openStore loads the server configuration and opens a migrated store.
func openStore(ctx context.Context) (*config.Config, *repository.GormStore, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	db, err := repository.Open(cfg.Store())
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewGormStore(db, repository.WithReviewsPerItem(cfg.ReviewsPerItem))
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return cfg, store, nil
}

func runSeed(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stdout)
	years := fs.Int("years", 0, "Only load clubs released in the last N years (default from config)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if *years <= 0 {
		*years = cfg.SeedYears
	}
	report, err := seed.Load(ctx, store, seed.Options{Years: *years})
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runHashPassword(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(stdout)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	password := fs.Arg(0)
	if password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", errUsage)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(hash))
	return err
}

func runClubs(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clubs", flag.ContinueOnError)
	fs.SetOutput(stdout)
	var f repository.ClubFilter
	fs.StringVar(&f.Query, "q", "", "Free-text search over brand and model")
	fs.StringVar(&f.Brand, "brand", "", "Brand name")
	fs.StringVar(&f.ClubType, "type", "", "Club type, e.g. Driver")
	fs.IntVar(&f.Year, "year", 0, "Release year")
	fs.BoolVar(&f.CurrentOnly, "current", false, "Only clubs still on sale")
	fs.IntVar(&f.Limit, "limit", defaultClubsLimit, "Maximum rows")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	_, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	clubs, err := store.Clubs(ctx, f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tBRAND\tMODEL\tTYPE\tYEAR\tPRICE")
	for _, c := range clubs {
		price := "-"
		if p := c.Price(); p != nil {
			price = strconv.FormatFloat(*p, 'f', 2, 64)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.Brand, c.ModelName, c.ClubType, c.ReleaseYear, price)
	}
	return tw.Flush()
}

func runLoadTest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(stdout)
	cfg := &loadgen.Config{}
	fs.StringVar(&cfg.BaseURL, "url", defaultLoadTestURL, "Base URL of the service")
	fs.StringVar(&cfg.Username, "user", "", "Basic auth user")
	fs.StringVar(&cfg.Password, "password", "", "Basic auth password")
	fs.IntVar(&cfg.Reviews, "reviews", defaultReviews, "Number of reviews to submit")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*workersPerCPU, "Number of concurrent submitters")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	fs.IntVar(&cfg.DuplicateEvery, "duplicate-every", defaultDuplicates, "Resend every Nth review, 0 disables")
	fs.DurationVar(&cfg.SettleTimeout, "settle", defaultSettle, "How long to wait for ingestion to drain")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "Generator seed, 0 picks one from the clock")
	fs.StringVar(&cfg.OutputFile, "output", "", "Write generated submissions to this file")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(ctx, loadTestDeadline)
	defer cancel()

	stats, err := loadgen.Run(ctx, cfg)
	if stats != nil {
		_, _ = fmt.Fprintf(stdout, "submitted=%d accepted=%d duplicate=%d failed=%d reviews_added=%d recommendations=%d duration=%s\n",
			stats.Submitted, stats.Accepted, stats.Duplicate, stats.Failed,
			stats.ReviewsAfter-stats.ReviewsBefore, stats.Recommendations, stats.Duration.Round(time.Millisecond))
	}
	return err
}
