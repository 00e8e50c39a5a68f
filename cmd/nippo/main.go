package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nippo",
	Short: "Nippo — daily sales report server",
	Long:  "Nippo is the backend for a daily sales-activity reporting system: encrypted cookie sessions, role-scoped report browsing for sales reps, managers, and admins, CSRF protection, and login rate limiting.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/nippo.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
