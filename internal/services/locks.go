package services

import "sync"

// KeyedLocker hands out one mutex per key and forgets keys nobody holds or waits on.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu      sync.Mutex
	holders int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (locker *KeyedLocker) Lock(key string) func() {
	locker.mu.Lock()
	lock, ok := locker.locks[key]
	if !ok {
		lock = &keyedLock{}
		locker.locks[key] = lock
	}
	lock.holders++
	locker.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		locker.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(locker.locks, key)
		}
		locker.mu.Unlock()
	}
}

func (locker *KeyedLocker) size() int {
	locker.mu.Lock()
	defer locker.mu.Unlock()
	return len(locker.locks)
}
