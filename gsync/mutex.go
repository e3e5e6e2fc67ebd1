// Package gsync provides mutual exclusion locks for green threads, built on
// the counting semaphores of a scheduler.
package gsync

import (
	"github.com/tinygo-org/gthread/scheduler"
)

func runtimePanic(msg string) {
	panic("gsync: " + msg)
}

// Mutex is a mutual exclusion lock for the threads of one scheduler.
// Waiting threads acquire the lock in FIFO order.
type Mutex struct {
	s   *scheduler.Scheduler
	sem scheduler.SemaphoreHandle
}

// NewMutex returns an unlocked mutex.
func NewMutex(s *scheduler.Scheduler) (*Mutex, error) {
	sem, err := s.SemaphoreInit(1)
	if err != nil {
		return nil, err
	}
	return &Mutex{s: s, sem: sem}, nil
}

// Lock locks m. If the lock is already in use, the calling thread blocks until
// the mutex is available.
func (m *Mutex) Lock() {
	if err := m.s.SemaphoreWait(m.sem); err != nil {
		runtimePanic("Lock: " + err.Error())
	}
}

// TryLock tries to lock m and reports whether it succeeded. It never blocks.
func (m *Mutex) TryLock() bool {
	v, err := m.s.SemaphoreValue(m.sem)
	if err != nil {
		runtimePanic("TryLock: " + err.Error())
	}
	if v <= 0 {
		return false
	}
	// The value is positive, so this wait doesn't block.
	m.Lock()
	return true
}

// Unlock unlocks m. If threads are waiting, the first one gets the lock and
// becomes ready; the caller keeps running.
//
// A locked Mutex is not associated with a particular thread.
func (m *Mutex) Unlock() {
	v, err := m.s.SemaphoreValue(m.sem)
	if err != nil {
		runtimePanic("Unlock: " + err.Error())
	}
	if v > 0 {
		runtimePanic("Unlock of unlocked Mutex")
	}
	if err := m.s.SemaphoreSignal(m.sem); err != nil {
		runtimePanic("Unlock: " + err.Error())
	}
}

// Close releases the semaphore of m. It fails while threads wait for m.
func (m *Mutex) Close() error {
	return m.s.SemaphoreDestroy(m.sem)
}

type Locker interface {
	Lock()
	Unlock()
}

// RWMutex is a reader/writer mutual exclusion lock. The lock can be held by
// an arbitrary number of readers or a single writer. A thread waiting in Lock
// keeps new readers out until it got and released the lock.
type RWMutex struct {
	s *scheduler.Scheduler

	// Number of readers holding the lock. A writer subtracts
	// rwMutexMaxReaders while it waits for or holds the lock; readers arriving
	// in that time still count themselves in and wait on readerSem.
	readers int

	// Readers that still had the lock when the current writer arrived.
	departing int

	readerSem scheduler.SemaphoreHandle
	writerSem scheduler.SemaphoreHandle

	// Writer lock. Held between Lock() and Unlock().
	writerLock *Mutex
}

const rwMutexMaxReaders = 1 << 30

// NewRWMutex returns an unlocked RWMutex.
func NewRWMutex(s *scheduler.Scheduler) (*RWMutex, error) {
	writerLock, err := NewMutex(s)
	if err != nil {
		return nil, err
	}
	readerSem, err := s.SemaphoreInit(0)
	if err != nil {
		return nil, err
	}
	writerSem, err := s.SemaphoreInit(0)
	if err != nil {
		return nil, err
	}
	return &RWMutex{
		s:          s,
		readerSem:  readerSem,
		writerSem:  writerSem,
		writerLock: writerLock,
	}, nil
}

// Lock locks rw for writing.
// If the lock is already locked for reading or writing,
// Lock blocks until the lock is available.
func (rw *RWMutex) Lock() {
	// Exclusive lock for writers.
	rw.writerLock.Lock()

	// Signal to readers that they can't lock this mutex anymore.
	active := rw.readers
	rw.readers -= rwMutexMaxReaders
	if active == 0 {
		return
	}

	// Wait until the active readers are gone. The last one wakes us.
	rw.departing = active
	rw.wait("Lock", rw.writerSem)
}

// Unlock unlocks rw for writing and lets in the readers that arrived in the
// meantime.
func (rw *RWMutex) Unlock() {
	if rw.readers >= 0 {
		runtimePanic("Unlock of unlocked RWMutex")
	}
	rw.readers += rwMutexMaxReaders
	for i := 0; i < rw.readers; i++ {
		rw.signal("Unlock", rw.readerSem)
	}

	// Done with this lock (next writer can try to get a lock).
	rw.writerLock.Unlock()
}

// RLock locks rw for reading.
//
// It should not be used for recursive read locking; a blocked Lock
// call excludes new readers from acquiring the lock.
func (rw *RWMutex) RLock() {
	rw.readers++
	if rw.readers < 0 {
		// A writer is waiting or writing.
		rw.wait("RLock", rw.readerSem)
	}
}

// RUnlock undoes a single RLock call.
func (rw *RWMutex) RUnlock() {
	rw.readers--
	if rw.readers == -1 || rw.readers == -rwMutexMaxReaders-1 {
		runtimePanic("RUnlock of unlocked RWMutex")
	}
	if rw.readers < 0 {
		// A writer is waiting for the readers to leave.
		rw.departing--
		if rw.departing == 0 {
			rw.signal("RUnlock", rw.writerSem)
		}
	}
}

func (rw *RWMutex) wait(op string, sem scheduler.SemaphoreHandle) {
	if err := rw.s.SemaphoreWait(sem); err != nil {
		runtimePanic(op + ": " + err.Error())
	}
}

func (rw *RWMutex) signal(op string, sem scheduler.SemaphoreHandle) {
	if err := rw.s.SemaphoreSignal(sem); err != nil {
		runtimePanic(op + ": " + err.Error())
	}
}

// RLocker returns a Locker interface that implements
// the Lock and Unlock methods by calling rw.RLock and rw.RUnlock.
func (rw *RWMutex) RLocker() Locker {
	return (*rlocker)(rw)
}

type rlocker RWMutex

func (r *rlocker) Lock()   { (*RWMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*RWMutex)(r).RUnlock() }

// Close releases the semaphores of rw. It fails while threads wait for rw.
func (rw *RWMutex) Close() error {
	for _, sem := range []scheduler.SemaphoreHandle{rw.readerSem, rw.writerSem} {
		if err := rw.s.SemaphoreDestroy(sem); err != nil {
			return err
		}
	}
	return rw.writerLock.Close()
}
