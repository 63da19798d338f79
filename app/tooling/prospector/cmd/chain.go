package cmd

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ardanlabs/powledger/foundation/blockchain/canonical"
	"github.com/ardanlabs/powledger/foundation/blockchain/prospector"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain [node]",
	Short: "Print and verify the ledger's chain.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

func chainRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p, err := prospector.New(prospector.Config{
		Client: prospector.NewClient(nodeURL(args), &http.Client{}),
	})
	if err != nil {
		return err
	}

	chain, verr := p.Verify(ctx)
	if chain.Length == 0 && verr != nil {
		return verr
	}

	data := pterm.TableData{
		{"Index", "Timestamp", "Txs", "Proof", "Previous Hash", "Hash"},
	}
	for _, block := range chain.Blocks {
		row := []string{
			strconv.Itoa(block.Index),
			canonical.Float(block.Timestamp),
			strconv.Itoa(len(block.Transactions)),
			strconv.FormatInt(block.Proof, 10),
			block.PreviousHash,
			block.Hash(),
		}
		data = append(data, row)
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if verr != nil {
		pterm.Error.Println(verr)
		return verr
	}

	pterm.Success.Printfln("chain of %d blocks verified", chain.Length)

	return nil
}
