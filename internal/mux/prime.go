package mux

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prime acquires and indexes every file of the initial project set. It must
// complete before the child is spawned and before any protocol traffic is
// accepted, otherwise SYMBOL_LOCATIONS could answer from a partial index.
// Any failure here is a startup failure; there is no degraded mode before
// priming completes. Parsing dominates the cost, so files are indexed
// concurrently; the store and index take their own locks.
func (p *Processor) Prime(files []string) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range files {
		g.Go(func() error {
			snap, err := p.docs.Acquire(path, "")
			if err != nil {
				return fmt.Errorf("mux: prime: %w", err)
			}
			if err := p.indexSnapshot(snap); err != nil {
				return fmt.Errorf("mux: prime %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Int("files", len(files)).Msg("mux: index primed")
	return nil
}
