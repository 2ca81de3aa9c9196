package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mind-engage/testme/internal/config"
	"github.com/mind-engage/testme/internal/db"
	"github.com/mind-engage/testme/internal/quiz"
	"github.com/mind-engage/testme/internal/users"
)

const usage = `usage: testme-admin <command> [flags]

commands:
  migrate            create or update the database schema
  create-superuser   create an admin account
  seed-demo          load a small demo quiz
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate":
		err = migrate(ctx, cfg)
	case "create-superuser":
		err = createSuperuser(ctx, cfg, args)
	case "seed-demo":
		err = seedDemo(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func open(ctx context.Context, cfg config.Config) (*quiz.SQLStore, *users.Store, func(), error) {
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, nil, nil, err
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return quiz.NewSQLStore(dbh, driver), users.NewStore(dbh), func() { _ = dbh.Close() }, nil
}

// migrate relies on db.Open applying the idempotent schema.
func migrate(ctx context.Context, cfg config.Config) error {
	_, _, closeDB, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	closeDB()
	log.Printf("schema up to date (%s)", cfg.DBDriver)
	return nil
}

func createSuperuser(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("create-superuser", flag.ExitOnError)
	username := fs.String("username", cfg.AdminUser, "account name")
	email := fs.String("email", cfg.AdminEmail, "optional email")
	password := fs.String("password", cfg.AdminPassword, "password (defaults to $ADMIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("-username and -password are required")
	}
	_, accounts, closeDB, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	u, err := accounts.Create(ctx, users.NewUser{
		Username:    *username,
		Email:       *email,
		Password:    *password,
		IsStaff:     true,
		IsSuperuser: true,
	})
	if err != nil {
		if msgs := users.Messages(err); len(msgs) > 0 {
			return fmt.Errorf("invalid input: %v", msgs)
		}
		return err
	}
	log.Printf("superuser %q created (id=%d)", u.Username, u.ID)
	return nil
}

func seedDemo(ctx context.Context, cfg config.Config) error {
	store, _, closeDB, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	q, err := SeedDemo(ctx, store)
	if err != nil {
		return err
	}
	log.Printf("demo quiz %q created (id=%d, %d questions)", q.Name, q.ID, len(q.QuestionIDs))
	return nil
}
