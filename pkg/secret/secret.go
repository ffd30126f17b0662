// Package secret holds credentials in memory that is kept out of the Go
// heap, locked against swapping when the platform allows it, excluded
// from core dumps, and zeroed on Close.
//
// Secrets handed over by the CI platform as environment variables are
// removed from the process environment when read, so that child processes
// (build, publish and deploy commands) never inherit them.
package secret

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive bytes in an anonymous mmap region.
// A Buffer must not be copied. After Close, reading the buffer panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	locked bool
	closed bool
}

// New copies source into a protected buffer, then zeroes source.
func New(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: empty secret")
	}
	data, err := unix.Mmap(-1, 0, len(source), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}
	b := &Buffer{data: data, length: len(source)}

	// mlock is subject to RLIMIT_MEMLOCK, which unprivileged CI containers may set to 0:
	// an unlocked buffer still keeps the secret out of the heap.
	b.locked = unix.Mlock(data) == nil
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)

	copy(b.data, source)
	Zero(source)
	return b, nil
}

// FromEnv reads a secret from an environment variable and unsets the variable.
// Surrounding whitespace is trimmed.
func FromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}
	_ = os.Unsetenv(name)
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("secret: environment variable %s is empty", name)
	}
	return New([]byte(value))
}

// Bytes returns the secret. The slice points into the protected region and
// must not be retained beyond the lifetime of the Buffer.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// String returns a heap copy of the secret, for API boundaries requiring strings.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Len returns the size of the secret
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Locked tells if the buffer is locked in RAM
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Close zeroes and releases the buffer. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)

	var err error
	if b.locked {
		if e := unix.Munlock(b.data); e != nil {
			err = fmt.Errorf("secret: munlock failed: %w", e)
		}
	}
	if e := unix.Munmap(b.data); e != nil && err == nil {
		err = fmt.Errorf("secret: munmap failed: %w", e)
	}
	b.data = nil
	return err
}

// Zero overwrites a byte slice with zeroes
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
