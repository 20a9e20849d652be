package services

import (
	"context"
	"kuro/contract"
	"kuro/mocks"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"
)

// inline runs dispatched functions on the caller goroutine.
type inline struct{}

func (inline) Dispatch(fn func()) { fn() }

// feeds captures the snapshot callbacks handed to the mocked store, per path and open order.
type feeds struct {
	callbacks map[string][]contract.SnapshotFunc
	closed    map[string]int
}

func newFeeds() *feeds {
	return &feeds{callbacks: make(map[string][]contract.SnapshotFunc), closed: make(map[string]int)}
}

func (f *feeds) expect(store *mocks.MockILiveStore) {
	store.EXPECT().
		Subscribe(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string, cb contract.SnapshotFunc) (contract.Unsubscribe, error) {
			f.callbacks[path] = append(f.callbacks[path], cb)
			return func() { f.closed[path]++ }, nil
		}).
		AnyTimes()
}

func (f *feeds) opened(path string) int {
	return len(f.callbacks[path])
}

// emit pushes snapshot on the index-th feed opened on path.
func (f *feeds) emit(path string, index int, snapshot contract.Snapshot) {
	snapshot.Path = path
	f.callbacks[path][index](snapshot)
}

func children(docs ...contract.Child) contract.Snapshot {
	return contract.Snapshot{Children: append([]contract.Child{}, docs...)}
}

func userChild(id, email string) contract.Child {
	return contract.Child{ID: id, Doc: contract.Document{"uid": id, "email": email}}
}

func messageChild(id, text, senderID string, millis float64) contract.Child {
	return contract.Child{ID: id, Doc: contract.Document{"text": text, "senderId": senderID, "timestamp": millis}}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}
