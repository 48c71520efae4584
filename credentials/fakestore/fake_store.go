package fakestore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store that records writes and can be
// told to fail.
type FakeStore struct {
	access  string
	refresh string
	saves   int
	clears  int

	SaveErr  error
	ClearErr error
	lock     sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed stores a pair without counting it as a Save.
func (fs *FakeStore) Seed(access, refresh string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.access, fs.refresh = access, refresh
}

func (fs *FakeStore) Save(_ context.Context, access, refresh string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.saves++
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.access, fs.refresh = access, refresh
	return nil
}

func (fs *FakeStore) LoadAccess(context.Context) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.access == "" {
		return "", credentials.ErrNoToken
	}
	return fs.access, nil
}

func (fs *FakeStore) LoadRefresh(context.Context) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.refresh == "" {
		return "", credentials.ErrNoToken
	}
	return fs.refresh, nil
}

func (fs *FakeStore) Clear(context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.clears++
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.access, fs.refresh = "", ""
	return nil
}

// Tokens returns the stored pair.
func (fs *FakeStore) Tokens() (access, refresh string) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.access, fs.refresh
}

func (fs *FakeStore) Saves() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.saves
}

func (fs *FakeStore) Clears() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.clears
}
