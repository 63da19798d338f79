// Package cmd contains the prospector app.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	node    string
	idFile  string
	timeout time.Duration
)

const defaultNode = "http://localhost:5000"

func init() {
	rootCmd.PersistentFlags().StringVarP(&node, "node", "n", defaultNode, "Url of the ledger.")
	rootCmd.PersistentFlags().StringVarP(&idFile, "id-file", "i", "my_id.txt", "Path to the miner identity, a text file or an .ecdsa key.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Timeout for each call to the ledger.")
}

var rootCmd = &cobra.Command{
	Use:   "prospector [node]",
	Short: "Mine blocks for a proof of work ledger",
	Args:  cobra.MaximumNArgs(1),
	RunE:  mineRun,
}

// Execute runs the prospector.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// nodeURL returns the ledger url. A positional argument wins over the flag.
func nodeURL(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return node
}
