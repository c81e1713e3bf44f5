// credctl manages credential bundles directly against the gateway database.
// It is the operator's tool for seeding and rotating remote API credentials
// without going through the HTTP admin routes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeFn := connect(ctx)
	defer closeFn()

	var err error
	switch cmd {
	case "list":
		err = list(ctx, store)
	case "upsert":
		err = upsert(ctx, store, args)
	case "activate":
		err = activate(ctx, store, args)
	case "delete":
		err = remove(ctx, store, args)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: credctl <command> [flags]

commands:
  list                      show all credential bundles
  upsert -name .. -key ..   create or update a bundle
  activate -name ..         mark a bundle active (deactivates the rest)
  delete -name ..           remove a bundle`)
}

func connect(ctx context.Context) (settings.Store, func()) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		user := envOrDefault("DB_USER", "mafcoach")
		pass := envOrDefault("DB_PASSWORD", "mafcoach-dev")
		name := envOrDefault("DB_NAME", "mafcoach")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("database not reachable: %v", err)
	}
	return settings.NewPGStore(pool), pool.Close
}

func list(ctx context.Context, store settings.Store) error {
	bundles, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		fmt.Println("no credential bundles configured")
		return nil
	}
	fmt.Printf("%-24s %-12s %-10s %-8s %s\n", "NAME", "KEY", "ORG", "ACTIVE", "UPDATED")
	for _, b := range bundles {
		fmt.Printf("%-24s %-12s %-10s %-8v %s\n",
			b.Name, b.KeyPreview(), b.OrganizationID, b.IsActive, b.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func upsert(ctx context.Context, store settings.Store, args []string) error {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	name := fs.String("name", "", "bundle name (required)")
	key := fs.String("key", "", "remote API key (required)")
	org := fs.String("org", "", "organization id")
	user := fs.String("user", "", "user id")
	replica := fs.String("replica", "", "default replica id")
	active := fs.Bool("active", false, "mark this bundle active")
	fs.Parse(args)

	if *name == "" || *key == "" {
		fs.Usage()
		return fmt.Errorf("-name and -key are required")
	}

	b, err := store.Upsert(ctx, settings.UpsertParams{
		Name:           *name,
		APIKey:         *key,
		OrganizationID: *org,
		UserID:         *user,
		ReplicaID:      *replica,
		IsActive:       *active,
	})
	if err != nil {
		return err
	}
	fmt.Printf("saved bundle %s (key %s, active=%v)\n", b.Name, b.KeyPreview(), b.IsActive)
	return nil
}

func activate(ctx context.Context, store settings.Store, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	name := fs.String("name", "", "bundle name (required)")
	fs.Parse(args)

	if *name == "" {
		fs.Usage()
		return fmt.Errorf("-name is required")
	}

	bundles, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, b := range bundles {
		if b.Name == *name {
			_, err := store.Upsert(ctx, settings.UpsertParams{
				Name:           b.Name,
				APIKey:         b.APIKey,
				OrganizationID: b.OrganizationID,
				UserID:         b.UserID,
				ReplicaID:      b.ReplicaID,
				IsActive:       true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("bundle %s is now active\n", b.Name)
			return nil
		}
	}
	return fmt.Errorf("no bundle named %q", *name)
}

func remove(ctx context.Context, store settings.Store, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	name := fs.String("name", "", "bundle name (required)")
	fs.Parse(args)

	if *name == "" {
		fs.Usage()
		return fmt.Errorf("-name is required")
	}

	removed, err := store.Delete(ctx, *name)
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("bundle %s deleted\n", *name)
	} else {
		fmt.Printf("no bundle named %s\n", *name)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
