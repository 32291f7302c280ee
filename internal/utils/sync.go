package utils

import (
	"sync"
	"sync/atomic"
)

// OptionalMutex is a sync.Mutex that only locks when UseMutex is set. Spaces created as
// externally synchronized leave it unset and every Lock becomes free.
//
// The mutex remembers whether it is held so that code requiring the lock can assert it. Without
// UseMutex the caller provides the synchronization and the mutex always reports itself held.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool

	held atomic.Bool
}

func (m *OptionalMutex) Lock() {
	if !m.UseMutex {
		return
	}
	m.Mutex.Lock()
	m.held.Store(true)
}

func (m *OptionalMutex) Unlock() {
	if !m.UseMutex {
		return
	}
	m.held.Store(false)
	m.Mutex.Unlock()
}

// Held returns true if some goroutine holds the mutex. It does not tell which one.
func (m *OptionalMutex) Held() bool {
	return !m.UseMutex || m.held.Load()
}

// OptionalRWMutex is the reader/writer counterpart of OptionalMutex
type OptionalRWMutex struct {
	Mutex    sync.RWMutex
	UseMutex bool

	writer  atomic.Bool
	readers atomic.Int32
}

func (m *OptionalRWMutex) Lock() {
	if !m.UseMutex {
		return
	}
	m.Mutex.Lock()
	m.writer.Store(true)
}

func (m *OptionalRWMutex) Unlock() {
	if !m.UseMutex {
		return
	}
	m.writer.Store(false)
	m.Mutex.Unlock()
}

func (m *OptionalRWMutex) RLock() {
	if !m.UseMutex {
		return
	}
	m.Mutex.RLock()
	m.readers.Add(1)
}

func (m *OptionalRWMutex) RUnlock() {
	if !m.UseMutex {
		return
	}
	m.readers.Add(-1)
	m.Mutex.RUnlock()
}

// Held returns true if the mutex is write-locked
func (m *OptionalRWMutex) Held() bool {
	return !m.UseMutex || m.writer.Load()
}

// RHeld returns true if the mutex is locked for either reading or writing
func (m *OptionalRWMutex) RHeld() bool {
	return !m.UseMutex || m.writer.Load() || m.readers.Load() > 0
}
