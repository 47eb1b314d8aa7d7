package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mxocore/worldcore/internal/logging"
	"github.com/cenkalti/backoff/v4"
)

// ErrNotFound is returned by the blocking loads when no row/document exists.
var ErrNotFound = errors.New("store: not found")

// maxSaveAttempts bounds the exponential backoff retry on a save failure
// (§4.9): after the fifth attempt the write is logged and dropped, and the
// in-memory state remains authoritative until the next tick.
const maxSaveAttempts = 5

// writeQueueSize is the buffered channel depth. When it is full, enqueue
// logs a warning and hands the write to a goroutine that waits for room,
// so the caller never blocks; a full queue means the worker is falling
// behind persistence.
const writeQueueSize = 1024

// worker drains queued writes into the backing stores, retrying failed
// flushes with exponential backoff before dropping them.
type worker struct {
	relational *relationalRepo
	blobs      *blobRepo
	cache      *hotCache
	box        *outbox
	logger     *logging.Logger

	queue chan queuedWrite
	wg    sync.WaitGroup
	stop  chan struct{}
}

type queuedWrite struct {
	write pendingWrite
	key   []byte
}

func newWorker(relational *relationalRepo, blobs *blobRepo, cache *hotCache, box *outbox) *worker {
	return &worker{
		relational: relational,
		blobs:      blobs,
		cache:      cache,
		box:        box,
		logger:     logging.GetStoreLogger(),
		queue:      make(chan queuedWrite, writeQueueSize),
		stop:       make(chan struct{}),
	}
}

// start replays anything left in the outbox from a prior crash, then
// launches the drain loop.
func (w *worker) start() {
	if pending, keys, err := w.box.pending(); err == nil {
		for i, p := range pending {
			w.queue <- queuedWrite{write: p, key: keys[i]}
		}
	}
	w.wg.Add(1)
	go w.run()
}

// enqueue durably records w in the outbox and hands it to the worker.
func (w *worker) enqueue(pw pendingWrite) {
	pw.EnqueuedAt = time.Now()
	key, err := w.box.append(pw)
	if err != nil {
		w.logger.Error("store: failed to durably queue write for character %d: %v", pw.CharacterID, err)
		return
	}
	select {
	case w.queue <- queuedWrite{write: pw, key: key}:
	default:
		w.logger.Warn("store: write queue full, character %d save delayed", pw.CharacterID)
		go func() { w.queue <- queuedWrite{write: pw, key: key} }()
	}
}

func (w *worker) run() {
	defer w.wg.Done()
	for {
		select {
		case qw := <-w.queue:
			w.flush(qw)
		case <-w.stop:
			w.drain()
			return
		}
	}
}

// drain flushes anything still buffered on the channel before shutdown.
func (w *worker) drain() {
	for {
		select {
		case qw := <-w.queue:
			w.flush(qw)
		default:
			return
		}
	}
}

func (w *worker) flush(qw queuedWrite) {
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSaveAttempts-1)
	err := backoff.Retry(func() error {
		return w.apply(qw.write)
	}, bo)

	if err != nil {
		w.logger.Error("store: dropping write for character %d after %d attempts: %v",
			qw.write.CharacterID, maxSaveAttempts, err)
	}
	if removeErr := w.box.remove(qw.key); removeErr != nil {
		w.logger.Warn("store: failed to clear outbox entry for character %d: %v", qw.write.CharacterID, removeErr)
	}
}

func (w *worker) apply(pw pendingWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch pw.Kind {
	case writeCharacterFields:
		if err := w.relational.applyFields(ctx, pw.CharacterID, pw.Fields); err != nil {
			return err
		}
		if w.cache != nil {
			w.cache.invalidate(ctx, pw.CharacterID)
		}
		return nil
	case writeAppearance:
		return w.blobs.saveAppearance(pw.CharacterID, pw.Blob)
	case writePosition:
		if err := w.relational.applyPosition(ctx, pw.CharacterID, pw.Position, pw.District); err != nil {
			return err
		}
		if w.cache != nil {
			w.cache.applyPositionLocal(ctx, pw.CharacterID, pw.Position, pw.District)
		}
		return nil
	default:
		return nil
	}
}

// close signals the worker to drain and blocks until it has.
func (w *worker) close() {
	close(w.stop)
	w.wg.Wait()
}
