package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/schema"
)

// Follower is a background service that polls growing NDJSON files and
// ingests newly appended lines.
type Follower interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Follower = (*follower)(nil)

type followSource struct {
	kind schema.Kind
	path string
}

type follower struct {
	log      logrus.FieldLogger
	svc      *Service
	interval time.Duration
	sources  []followSource
	done     chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	offsets map[string]int64
}

// NewFollower creates a follower from the configured sources. Sources with
// an unknown kind were already rejected by config validation.
func NewFollower(
	log logrus.FieldLogger,
	svc *Service,
	cfg *config.FollowConfig,
	interval time.Duration,
) (Follower, error) {
	sources := make([]followSource, 0, len(cfg.Sources))

	for _, src := range cfg.Sources {
		kind, ok := schema.ParseKind(src.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown follow source kind: %s", src.Kind)
		}

		sources = append(sources, followSource{kind: kind, path: src.Path})
	}

	return &follower{
		log:      log.WithField("component", "follower"),
		svc:      svc,
		interval: interval,
		sources:  sources,
		done:     make(chan struct{}),
		offsets:  make(map[string]int64, len(sources)),
	}, nil
}

// Start launches a background goroutine that runs an immediate poll pass
// and then ticks at the configured interval.
func (f *follower) Start(ctx context.Context) error {
	f.log.WithFields(logrus.Fields{
		"interval": f.interval.String(),
		"sources":  len(f.sources),
	}).Info("Starting follower")

	f.wg.Add(1)

	go func() {
		defer f.wg.Done()

		f.runPass(ctx)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.runPass(ctx)
			case <-f.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the follower goroutine to stop and waits for it.
func (f *follower) Stop() error {
	close(f.done)
	f.wg.Wait()

	f.log.Info("Follower stopped")

	return nil
}

// runPass polls every source once. A failing source logs and keeps its
// offset; the others are unaffected.
func (f *follower) runPass(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range f.sources {
		g.Go(func() error {
			if err := f.pollSource(gctx, src); err != nil {
				f.log.WithError(err).
					WithField("path", src.path).
					Warn("Poll failed, will retry next pass")
			}

			return nil
		})
	}

	_ = g.Wait()
}

// pollSource reads lines appended since the last successful ingestion. The
// offset only advances after the batch is upserted, so a failed pass is
// re-read in full on the next tick.
func (f *follower) pollSource(ctx context.Context, src followSource) error {
	offset := f.offset(src.path)

	file, err := os.Open(src.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("opening source: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stating source: %w", err)
	}

	// A shrunk file was truncated or replaced; start over.
	if info.Size() < offset {
		f.log.WithField("path", src.path).Info("Source truncated, re-reading from start")

		offset = 0
	}

	if info.Size() == offset {
		return nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking source: %w", err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	// Only consume complete lines; a partial trailing line stays for the
	// next pass.
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		return nil
	}

	data = data[:cut+1]

	result, err := f.svc.Ingest(ctx, src.kind, FormatNDJSON, bytes.NewReader(data))
	if err != nil {
		return err
	}

	f.setOffset(src.path, offset+int64(len(data)))

	if result.Rows > 0 {
		f.log.WithFields(logrus.Fields{
			"path": src.path,
			"kind": src.kind,
			"rows": result.Rows,
		}).Info("Appended rows ingested")
	}

	return nil
}

func (f *follower) offset(path string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.offsets[path]
}

func (f *follower) setOffset(path string, offset int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.offsets[path] = offset
}
