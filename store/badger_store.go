// Package store implements the live document store on top of BadgerDB.
// Badger keys are the document paths themselves (users/{id}, messages/{key}/{id}),
// values are protobuf encoded documents.
package store

import (
	"context"
	"fmt"
	"kuro/contract"
	"kuro/errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.ILiveStore = (*BadgerStore)(nil)

type BadgerStore struct {
	db    *badger.DB
	log   *slog.Logger
	clock func() time.Time

	mu       sync.RWMutex
	feeds    map[uint64]*feed
	nextFeed uint64
	closed   bool
}

// feed is one live subscription. dirty has capacity 1: several changes landing
// while a snapshot is being built collapse into a single rebuild, which is
// enough because every delivery is a full snapshot.
type feed struct {
	id         uint64
	path       string
	dirty      chan struct{}
	cancel     context.CancelFunc
	onSnapshot contract.SnapshotFunc
}

type Option func(*BadgerStore)

// WithClock overrides the clock used to resolve server timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *BadgerStore) {
		s.clock = clock
	}
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, options ...Option) *BadgerStore {
	s := &BadgerStore{
		db:    db,
		log:   log,
		clock: time.Now,
		feeds: make(map[uint64]*feed),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *BadgerStore) Now() time.Time {
	return s.clock().UTC()
}

// Subscribe registers the feed before its first read, so no write committed
// after Subscribe returns can be missed.
func (s *BadgerStore) Subscribe(ctx context.Context, path string, onSnapshot contract.SnapshotFunc) (contract.Unsubscribe, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if onSnapshot == nil {
		return nil, errors.ErrNilCallback
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.ErrStoreClosed
	}
	feedCtx, cancel := context.WithCancel(ctx)
	s.nextFeed++
	f := &feed{
		id:         s.nextFeed,
		path:       path,
		dirty:      make(chan struct{}, 1),
		cancel:     cancel,
		onSnapshot: onSnapshot,
	}
	f.dirty <- struct{}{}
	s.feeds[f.id] = f
	s.mu.Unlock()

	s.log.Debug("Feed opened", "path", path, "feed", f.id)
	go s.runFeed(feedCtx, f)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			delete(s.feeds, f.id)
			s.mu.Unlock()
			s.log.Debug("Feed closed", "path", path, "feed", f.id)
		})
	}, nil
}

func (s *BadgerStore) runFeed(ctx context.Context, f *feed) {
	defer f.cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.dirty:
			snapshot := s.snapshot(f.path)
			if ctx.Err() != nil {
				return
			}
			f.onSnapshot(snapshot)
		}
	}
}

// snapshot reads the direct children of path in key order.
func (s *BadgerStore) snapshot(path string) contract.Snapshot {
	children := make([]contract.Child, 0)
	prefix := []byte(path + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			if strings.Contains(id, "/") {
				continue
			}
			err := item.Value(func(value []byte) error {
				doc, err := Decode(value)
				if err != nil {
					return err
				}
				children = append(children, contract.Child{ID: id, Doc: doc})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Snapshot read failed", "path", path, "error", err)
		return contract.Snapshot{
			Path: path,
			Err:  fmt.Errorf("%w: %s: %w", errors.ErrSubscriptionFailure, path, err),
		}
	}
	return contract.Snapshot{Path: path, Children: children}
}

// Append stores doc under a uuid v7 child id. Those ids sort by creation time,
// which gives conversation logs their insertion order.
func (s *BadgerStore) Append(ctx context.Context, path string, doc contract.Document) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("push id: %w", err)
	}
	if err = s.Write(ctx, path+"/"+id.String(), doc); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Write replaces the document at path. It returns once the transaction is committed.
func (s *BadgerStore) Write(ctx context.Context, path string, doc contract.Document) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errors.ErrStoreClosed
	}

	bytes, err := Encode(resolveServerValues(doc, s.Now().UnixMilli()))
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), bytes)
	})
	if err != nil {
		return err
	}
	s.notify(path)
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, path string) (contract.Document, bool, error) {
	if err := ValidatePath(path); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var doc contract.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			doc, err = Decode(value)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// notify marks dirty every feed whose path is the direct parent of key.
func (s *BadgerStore) notify(key string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return
	}
	parent := key[:idx]
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.feeds {
		if f.path != parent {
			continue
		}
		select {
		case f.dirty <- struct{}{}:
		default:
		}
	}
}

// Close stops every feed. The underlying badger.DB is owned by the caller.
func (s *BadgerStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, f := range s.feeds {
		f.cancel()
		delete(s.feeds, id)
	}
	s.log.Info("Live store closed")
}

// ValidatePath accepts slash separated paths without empty segments.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", errors.ErrInvalidPath)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return fmt.Errorf("%w: %q", errors.ErrInvalidPath, path)
		}
	}
	return nil
}
