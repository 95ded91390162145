// Command lazywriterd runs the lazy writer engine against a small fleet
// of synthetic dirty streams, backed by the demo storage collaborator, so
// its behavior can be observed end to end the way `ditto scan` drives the
// teacher's scan+hash pipeline from the command line.
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/eargollo/lazywriter/internal/config"
	"github.com/eargollo/lazywriter/internal/lazywriter"
	"github.com/eargollo/lazywriter/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	collab := storage.NewCollaborator(store, 2000, 512)
	lw := lazywriter.New(collab, cfg.Tunables())
	collab.SetOwner(lw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Print("lazywriterd: shutting down")
		cancel()
	}()

	lw.Start(ctx)
	defer lw.Stop()

	streams := seedStreams(lw, 64)
	log.Printf("lazywriterd: seeded %s dirty streams, worker pool size %d",
		humanize.Comma(int64(len(streams))), cfg.Tunables().WorkerCount)

	reportAndWait(ctx, lw, len(streams))
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	if url := cfg.DatabaseURL(); url != "" {
		log.Printf("lazywriterd: using Postgres store")
		return storage.OpenPostgres(url)
	}
	log.Printf("lazywriterd: using embedded SQLite store")
	return storage.Open(":memory:")
}

// seedStreams fabricates n dirty streams standing in for cached file
// handles the surrounding process would otherwise own, and registers them
// with the lazy writer.
func seedStreams(lw *lazywriter.LazyWriter, n int) []*lazywriter.StreamDescriptor {
	streams := make([]*lazywriter.StreamDescriptor, 0, n)
	for i := 0; i < n; i++ {
		size := int64(4096 * (1 + rand.Intn(4096)))
		s := &lazywriter.StreamDescriptor{
			File: &storage.File{
				ID:   uuid.New(),
				Path: humanize.Ordinal(i+1) + "-stream",
				Size: size,
			},
			OpenCount: int64(rand.Intn(2)),
			FileSize:  size,
		}
		dirty := int64(1 + rand.Intn(64))
		lw.InsertStream(s, dirty)
		streams = append(streams, s)
	}
	return streams
}

// reportAndWait prints periodic progress until every seeded stream has
// been fully flushed, then blocks on WaitForCurrentActivity so the
// process exits only after all in-flight write-behind work has drained.
// If the context is canceled first it returns at once, without that
// wait. Reads the dirty-page total through
// TotalDirtyPages rather than summing StreamDescriptor.DirtyPages
// directly, since that field is master-lock-guarded state owned by lw.
func reportAndWait(ctx context.Context, lw *lazywriter.LazyWriter, streamCount int) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := lw.TotalDirtyPages()
			log.Printf("lazywriterd: %s dirty pages remaining across %d streams",
				humanize.Comma(remaining), streamCount)
			if remaining == 0 {
				log.Print("lazywriterd: all seeded streams flushed, waiting for drain barrier")
				if err := lw.WaitForCurrentActivity(ctx); err != nil {
					log.Printf("lazywriterd: drain wait: %v", err)
				}
				log.Print("lazywriterd: drained, exiting")
				return
			}
		}
	}
}
