package main

import (
	"fmt"
	"os"

	"github.com/fitstudio/staff-console/internal/utils"
)

// Prints a bcrypt hash for seeding an admin row by hand.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/hash-password <password>")
		os.Exit(1)
	}
	if len(os.Args[1]) < 8 {
		fmt.Fprintln(os.Stderr, "Error: password must be at least 8 characters")
		os.Exit(1)
	}
	hash, err := utils.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
