//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Document is a schemaless record as held by the live store.
type Document map[string]any

// ServerTimestampField marks a placeholder the store replaces by its own clock on write.
const ServerTimestampField = ".sv"

// ServerTimestamp returns the placeholder value resolved by the store at write time.
func ServerTimestamp() map[string]any {
	return map[string]any{ServerTimestampField: "timestamp"}
}

// Child is one direct child document of a subscribed path.
type Child struct {
	ID  string
	Doc Document
}

// Snapshot is the full content of a subscribed path, in the store natural order.
// A non nil Err reports a feed failure; Children is then meaningless.
type Snapshot struct {
	Path     string
	Children []Child
	Err      error
}

type SnapshotFunc func(snapshot Snapshot)

// Unsubscribe cancels a live feed. Calling it more than once is a no-op.
type Unsubscribe func()

// ILiveStore is the append-only live document store the chat core relies on.
type ILiveStore interface {
	// Subscribe pushes a snapshot of path's children now and on every change.
	// onSnapshot is called from a store owned goroutine, in order, one call at a time.
	Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc) (Unsubscribe, error)
	// Append adds a child under path with a store generated, time ordered id.
	Append(ctx context.Context, path string, doc Document) (string, error)
	Write(ctx context.Context, path string, doc Document) error
	Get(ctx context.Context, path string) (Document, bool, error)
	Now() time.Time
}

// Dispatcher runs functions one at a time on the single control thread.
type Dispatcher interface {
	Dispatch(fn func())
}

// ICurrentUser exposes the logged-in participant id to the chat core.
type ICurrentUser interface {
	CurrentUserID() (string, bool)
	// OnTeardown registers fn to run once when the current session ends.
	OnTeardown(fn func())
}
