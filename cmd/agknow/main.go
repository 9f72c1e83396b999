package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avaolo/agknow/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "agknow",
	Short: "Agricultural knowledge search service",
	Long: `agknow serves an agricultural knowledge base: pesticide withholding
periods (karenca), crop protection advice and regulation documents, with
semantic, keyword and hybrid search over Redis.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agknow %s (%s)\n", version.Version, version.Commit)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, ingestCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
