package store

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"go.uber.org/zap"
)

// CoalescingStateStore decouples learner saves from the caller. Save only
// queues the newest document; a background goroutine writes it to the inner
// store, dropping any document superseded before it was written.
type CoalescingStateStore struct {
	inner   domain.LearnerStateStore
	timeout time.Duration
	logger  *zap.Logger

	pending chan []byte
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	latest  []byte
	written int
}

var _ domain.LearnerStateStore = (*CoalescingStateStore)(nil)

func NewCoalescingStateStore(inner domain.LearnerStateStore, timeout time.Duration, logger *zap.Logger) *CoalescingStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &CoalescingStateStore{
		inner:   inner,
		timeout: timeout,
		logger:  logger,
		pending: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Save never blocks on the inner store until Close; after that it writes
// directly without holding the store lock.
func (s *CoalescingStateStore) Save(_ context.Context, blob []byte) error {
	doc := append([]byte(nil), blob...)

	s.mu.Lock()
	if s.closed {
		s.latest = doc
		s.mu.Unlock()
		return s.saveClosed(doc)
	}
	defer s.mu.Unlock()

	s.latest = doc
	for {
		select {
		case s.pending <- doc:
			return nil
		default:
		}
		// Replace the queued document with the newer one.
		select {
		case <-s.pending:
		default:
		}
	}
}

// saveClosed writes straight to the inner store. Callers must not hold s.mu.
func (s *CoalescingStateStore) saveClosed(blob []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.inner.Save(ctx, blob)
}

// Load returns the newest queued document if one exists, otherwise the inner
// store's copy.
func (s *CoalescingStateStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	if latest != nil {
		return append([]byte(nil), latest...), nil
	}
	return s.inner.Load(ctx)
}

func (s *CoalescingStateStore) run() {
	defer s.wg.Done()
	for {
		select {
		case doc := <-s.pending:
			s.write(doc)
		case <-s.done:
			select {
			case doc := <-s.pending:
				s.write(doc)
			default:
			}
			return
		}
	}
}

func (s *CoalescingStateStore) write(doc []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.inner.Save(ctx, doc); err != nil {
		s.logger.Warn("failed to write learner state", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
}

// Written reports how many documents reached the inner store.
func (s *CoalescingStateStore) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes the last queued document and stops the writer. Later saves
// go straight to the inner store.
func (s *CoalescingStateStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}
