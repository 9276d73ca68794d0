// Package main provides the entry point for the reposcout CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Aman-CERP/reposcout/cmd/reposcout/cmd"
)

func main() {
	// A .env file is optional; it usually carries GITLAB_PRIVATE_TOKEN.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
