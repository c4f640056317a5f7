package storefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-shop-client/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory token store that records every write and can be
// told to fail.
type FakeStore struct {
	tokens  tokenstore.Tokens
	saves   []tokenstore.Tokens
	clears  int
	loadErr error
	saveErr error
	lock    sync.RWMutex

	// OnSave, when set, runs after a successful save while no lock is held.
	OnSave func(tokenstore.Tokens)
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// NewFakeStoreWith returns a store that already holds tokens, as after a previous run.
func NewFakeStoreWith(tokens tokenstore.Tokens) *FakeStore {
	return &FakeStore{tokens: tokens}
}

func (fs *FakeStore) Load(_ context.Context) (tokenstore.Tokens, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.loadErr != nil {
		return tokenstore.Tokens{}, fs.loadErr
	}
	return fs.tokens, nil
}

func (fs *FakeStore) Save(_ context.Context, tokens tokenstore.Tokens) error {
	fs.lock.Lock()
	if fs.saveErr != nil {
		err := fs.saveErr
		fs.lock.Unlock()
		return err
	}
	fs.tokens = tokens
	fs.saves = append(fs.saves, tokens)
	onSave := fs.OnSave
	fs.lock.Unlock()

	if onSave != nil {
		onSave(tokens)
	}
	return nil
}

func (fs *FakeStore) Clear(_ context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.tokens = tokenstore.Tokens{}
	fs.clears++
	return nil
}

func (fs *FakeStore) SetLoadError(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.loadErr = err
}

func (fs *FakeStore) SetSaveError(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.saveErr = err
}

// Current returns what a reload would see.
func (fs *FakeStore) Current() tokenstore.Tokens {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.tokens
}

func (fs *FakeStore) Saves() []tokenstore.Tokens {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return append([]tokenstore.Tokens(nil), fs.saves...)
}

func (fs *FakeStore) Clears() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.clears
}
