package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/syncmanager"
	"github.com/pkg/errors"
)

// runSync syncs once from the upstream node. An interrupt stops the sync
// before its next block.
func runSync(componentManager *ComponentManager, interrupt <-chan struct{}) error {
	done := make(chan struct{})
	defer close(done)
	spawn("runSync-interrupt", func() {
		select {
		case <-interrupt:
			componentManager.syncManager.Stop()
		case <-done:
		}
	})

	err := componentManager.Sync()
	if errors.Is(err, syncmanager.ErrInterrupted) {
		return nil
	}
	if err != nil {
		log.Errorf("Sync failed: %+v", err)
		return err
	}
	log.Infof("Local chain height is %d", componentManager.ChainStore().Height())
	return nil
}

func runVerify(store *chainstore.ChainStore, out io.Writer) error {
	err := store.VerifyChain()
	if err != nil {
		fmt.Fprintf(out, "Chain verification failed: %s\n", err)
		return err
	}
	fmt.Fprintf(out, "Chain verified: %d blocks\n", store.Height())
	return nil
}

func runStats(store *chainstore.ChainStore, out io.Writer) error {
	stats := store.Stats()

	writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "Blocks\t%d\n", stats.BlockCount)
	fmt.Fprintf(writer, "Transactions\t%d\n", stats.TotalTransactions)
	fmt.Fprintf(writer, "Average difficulty\t%.2f\n", stats.AverageDifficulty)
	latestHash := stats.LatestHash
	if latestHash == "" {
		latestHash = "-"
	}
	fmt.Fprintf(writer, "Latest block\t%s\n", latestHash)
	return writer.Flush()
}
