package kv

import (
	"sync"
	"time"
)

type record struct {
	data    []byte
	expires time.Time
}

func (r *record) expired(now time.Time) bool {
	return !r.expires.IsZero() && !now.Before(r.expires)
}

type memkv struct {
	data map[string]*record
	m    sync.RWMutex
	now  func() time.Time
}

// NewMemoryKV creates an in-process KV; values are copied on the way in and out
func NewMemoryKV() KV {
	return newMemoryKV(time.Now)
}

func newMemoryKV(now func() time.Time) *memkv {
	return &memkv{
		data: make(map[string]*record),
		now:  now,
	}
}

func clone(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	result := make([]byte, len(v))
	copy(result, v)
	return result
}

// Set sets a key value
func (mkv *memkv) Set(k string, v []byte) error {
	return mkv.SetTTL(k, v, 0)
}

// SetTTL sets a key value with ttl; a ttl <= 0 never expires
func (mkv *memkv) SetTTL(k string, v []byte, ttl time.Duration) error {
	if k == "" {
		return ErrEmptyKey
	}
	r := &record{data: clone(v)}
	if ttl > 0 {
		r.expires = mkv.now().Add(ttl)
	}
	mkv.m.Lock()
	defer mkv.m.Unlock()
	mkv.data[k] = r
	return nil
}

// Get fetches a value
func (mkv *memkv) Get(k string) ([]byte, error) {
	mkv.m.RLock()
	v, ok := mkv.data[k]
	mkv.m.RUnlock()
	if !ok {
		return nil, nil
	}
	now := mkv.now()
	if v.expired(now) {
		mkv.deleteExpired(k, now)
		return nil, nil
	}
	return clone(v.data), nil
}

// deleteExpired removes k only if the stored record is still expired; a concurrent Set may have replaced it
func (mkv *memkv) deleteExpired(k string, now time.Time) {
	mkv.m.Lock()
	defer mkv.m.Unlock()
	if v, ok := mkv.data[k]; ok && v.expired(now) {
		delete(mkv.data, k)
	}
}

// Delete remove a value
func (mkv *memkv) Delete(k string) error {
	mkv.m.Lock()
	defer mkv.m.Unlock()
	delete(mkv.data, k)
	return nil
}

// Prune removes expired records
func (mkv *memkv) Prune() error {
	now := mkv.now()
	mkv.m.Lock()
	defer mkv.m.Unlock()
	for k, v := range mkv.data {
		if v.expired(now) {
			delete(mkv.data, k)
		}
	}
	return nil
}
