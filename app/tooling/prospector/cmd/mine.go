package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/identity"
	"github.com/ardanlabs/powledger/foundation/blockchain/prospector"
	"github.com/ardanlabs/powledger/foundation/logger"
	"github.com/spf13/cobra"
)

var (
	searchTimeout time.Duration
	maxBlocks     int
)

func init() {
	rootCmd.Flags().DurationVarP(&searchTimeout, "search-timeout", "s", 0, "Give up on a tip after this long and fetch a new one, 0 searches forever.")
	rootCmd.Flags().IntVarP(&maxBlocks, "blocks", "b", 0, "Stop after forging this many blocks, 0 mines forever.")
}

func mineRun(cmd *cobra.Command, args []string) error {
	log, err := logger.New("PROSPECTOR")
	if err != nil {
		return err
	}
	defer log.Sync()

	minerID, err := identity.Load(idFile)
	if err != nil {
		return err
	}

	url := nodeURL(args)
	log.Infow("startup", "node", url, "miner", minerID)

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "miner", minerID)
	}

	p, err := prospector.New(prospector.Config{
		Client:        prospector.NewClient(url, &http.Client{Timeout: timeout}),
		MinerID:       minerID,
		SearchTimeout: searchTimeout,
		MaxBlocks:     maxBlocks,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}

	// Mine until interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		log.Errorw("shutdown", "mined", p.Mined(), "ERROR", err)
		return err
	}

	log.Infow("shutdown", "mined", p.Mined())

	return nil
}
