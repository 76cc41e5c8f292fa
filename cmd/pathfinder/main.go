package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/internal/cli"
)

var rootCmd = &cobra.Command{Use: "pathfinder"}

func main() {
	rootCmd.PersistentFlags().String("db", os.Getenv("DATABASE_URL"), "Database connection string")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
