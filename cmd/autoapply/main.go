// Package main provides the entry point for the autoapply service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autoapply",
	Short: "Automated job application pipeline",
	Long:  "Autoapply evaluates job candidates against per-profile rules, generates tailored application content, gates it on quality scores and submits approved applications under calendar rate limits.",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config.yaml (optional, env vars override)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
