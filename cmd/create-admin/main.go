package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/store"
)

// Creates an administrator account in the configured Postgres database.
func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: go run ./cmd/create-admin <email> <password> <first-name> <last-name>")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s, err := store.NewGormStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	u, err := service.NewUserService(s, cfg).CreateUser(ctx, os.Args[1], os.Args[2], os.Args[3], os.Args[4], models.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created admin %s (%s)\n", u.ID, u.Email)
}
