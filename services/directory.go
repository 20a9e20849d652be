package services

import (
	"context"
	stderrors "errors"
	"kuro/contract"
	"kuro/domain"
	"kuro/errors"
	"kuro/projection"
	"kuro/runtime"
	"kuro/store"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Directory is the live set of every participant but self, each annotated
// with the last message of the conversation shared with self.
//
// It owns one subscription on users and one nested subscription per contact
// on that contact's conversation log. All mutations run on the dispatcher.
type Directory struct {
	mu         sync.RWMutex
	log        *slog.Logger
	store      contract.ILiveStore
	dispatcher contract.Dispatcher
	registry   *runtime.Registry

	ctx       context.Context
	selfID    string
	users     *runtime.Slot
	contacts  map[string]domain.Participant
	logs      map[string][]domain.Message
	summaries map[string]domain.ConversationSummary
	usersErr  error
	logErrs   map[string]error // contact id -> last failure of its log feed
	closed    bool
	onChange  func()
}

func NewDirectory(log *slog.Logger, store contract.ILiveStore, dispatcher contract.Dispatcher, registry *runtime.Registry) *Directory {
	d := &Directory{
		log:        log,
		store:      store,
		dispatcher: dispatcher,
		registry:   registry,
		contacts:   make(map[string]domain.Participant),
		logs:       make(map[string][]domain.Message),
		summaries:  make(map[string]domain.ConversationSummary),
		logErrs:    make(map[string]error),
	}
	d.users = runtime.NewSlot(log, store, dispatcher, &d.mu)
	return d
}

// OnChange registers fn, called on the dispatcher after every applied snapshot.
// fn runs with the directory locked and must not call back into it.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Open starts watching the participant set on behalf of selfID.
func (d *Directory) Open(ctx context.Context, selfID string) error {
	if err := domain.ValidateID(selfID); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.selfID != "" {
		d.registry.UnsubscribeAll(d.selfID)
	}
	d.reset()
	d.ctx = ctx
	d.selfID = selfID
	d.closed = false
	return d.users.Open(ctx, domain.UsersCollection, d.applyUsers)
}

// applyUsers runs with d.mu held.
func (d *Directory) applyUsers(snapshot contract.Snapshot) {
	if snapshot.Err != nil {
		d.usersErr = snapshot.Err
		d.log.Warn("Participant feed failed, keeping last contacts", "error", snapshot.Err)
		d.changed()
		return
	}
	d.usersErr = nil
	contacts := projection.Contacts(store.DecodeParticipants(snapshot), d.selfID)

	for id := range d.contacts {
		if _, ok := contacts[id]; ok {
			continue
		}
		d.forget(id)
	}
	// Contacts whose log feed could not be opened are retried on every snapshot
	for id, contact := range contacts {
		if d.watching(id) {
			continue
		}
		err := d.watch(contact)
		switch {
		case err == nil:
		case stderrors.Is(err, errors.ErrInvalidIdentifier):
			d.log.Warn("Skipping contact", "contact", id, "error", err)
			delete(contacts, id)
		default:
			d.log.Warn("Conversation feed not opened, contact kept without summary", "contact", id, "error", err)
			d.logErrs[id] = err
		}
	}

	d.contacts = contacts
	d.summaries = make(map[string]domain.ConversationSummary, len(contacts))
	for id, contact := range contacts {
		if !d.watching(id) {
			continue
		}
		d.summaries[id] = projection.Summarize(contact, d.logs[id])
	}
	d.changed()
}

// watching reports whether the log feed with contactID is registered.
func (d *Directory) watching(contactID string) bool {
	key, err := domain.DeriveKey(d.selfID, contactID)
	if err != nil {
		return false
	}
	_, ok := d.registry.Get(d.selfID, domain.MessagesPath(key))
	return ok
}

// watch opens the nested subscription on the conversation with contact.
func (d *Directory) watch(contact domain.Participant) error {
	key, err := domain.DeriveKey(d.selfID, contact.ID)
	if err != nil {
		return err
	}
	target := domain.MessagesPath(key)
	slot := runtime.NewSlot(d.log, d.store, d.dispatcher, &d.mu)
	contactID := contact.ID
	err = slot.Open(d.ctx, target, func(snapshot contract.Snapshot) {
		d.applyLog(contactID, snapshot)
	})
	if err != nil {
		return err
	}
	d.registry.Subscribe(d.selfID, target, slot)
	return nil
}

func (d *Directory) forget(contactID string) {
	if key, err := domain.DeriveKey(d.selfID, contactID); err == nil {
		d.registry.Unsubscribe(d.selfID, domain.MessagesPath(key))
	}
	delete(d.logs, contactID)
	delete(d.summaries, contactID)
	delete(d.logErrs, contactID)
}

// applyLog runs with d.mu held.
func (d *Directory) applyLog(contactID string, snapshot contract.Snapshot) {
	contact, ok := d.contacts[contactID]
	if !ok {
		return
	}
	if snapshot.Err != nil {
		d.logErrs[contactID] = snapshot.Err
		d.log.Warn("Conversation feed failed, keeping last summary", "contact", contactID, "error", snapshot.Err)
		d.changed()
		return
	}
	delete(d.logErrs, contactID)
	d.logs[contactID] = projection.Timeline(snapshot)
	d.summaries[contactID] = projection.Summarize(contact, d.logs[contactID])
	d.changed()
}

func (d *Directory) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}

// Close tears down the participant feed and every nested feed. Safe to call twice.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.users.Close()
	if d.selfID != "" {
		d.registry.UnsubscribeAll(d.selfID)
	}
	d.reset()
	d.selfID = ""
}

// reset empties every projection and failure. It runs with d.mu held.
func (d *Directory) reset() {
	d.contacts = make(map[string]domain.Participant)
	d.logs = make(map[string][]domain.Message)
	d.summaries = make(map[string]domain.ConversationSummary)
	d.usersErr = nil
	d.logErrs = make(map[string]error)
}

// Contacts returns a copy of the current contacts keyed by id.
func (d *Directory) Contacts() map[string]domain.Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Assign(d.contacts)
}

// Summaries returns a copy of the current summaries keyed by contact id.
func (d *Directory) Summaries() map[string]domain.ConversationSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Assign(d.summaries)
}

func (d *Directory) Summary(contactID string) (domain.ConversationSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	summary, ok := d.summaries[contactID]
	return summary, ok
}

// Stale joins the failures of every feed still broken. The participant feed
// failure clears on its next good snapshot, a log failure on that log's.
func (d *Directory) Stale() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.logErrs))
	for id := range d.logErrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := []error{d.usersErr}
	for _, id := range ids {
		errs = append(errs, d.logErrs[id])
	}
	return stderrors.Join(errs...)
}

// ContactStale reports the failure of the log feed shared with contactID, if any.
func (d *Directory) ContactStale(contactID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logErrs[contactID]
}
