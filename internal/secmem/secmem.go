// Package secmem holds credentials in memory behind a redacting wrapper.
package secmem

import (
	"fmt"
	"sync"
)

// SecureString holds a sensitive value with best-effort zeroing. Go's GC
// may copy the backing array, so Zero is defense in depth, not a
// guarantee.
//
// Every fmt verb and marshaler renders [REDACTED]; Reveal returns the
// plaintext and belongs only at the point of actual use, such as
// building an auth header.
type SecureString struct {
	mu     sync.Mutex
	data   []byte
	zeroed bool
}

func New(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// Reveal returns the plaintext value, or "" after Zero or on a nil
// receiver.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}

// IsZeroed reports whether Zero has been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

// Zero overwrites the backing bytes. Reveal returns "" afterwards.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
	s.zeroed = true
}

func (s *SecureString) String() string   { return "[REDACTED]" }
func (s *SecureString) GoString() string { return "[REDACTED]" }

// Format keeps every fmt verb from leaking the plaintext.
func (s *SecureString) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

func (s *SecureString) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// UnmarshalJSON is rejected so a SecureString cannot be populated from
// untrusted input by accident.
func (s *SecureString) UnmarshalJSON(data []byte) error {
	return fmt.Errorf("secmem: cannot deserialize into SecureString")
}
