package asset

import (
	"os"
	"sync"

	"github.com/Open-CMSIS-Pack/vsce-helper/log"
)

// Scope collects cleanup actions for resources whose lifetime ends with
// one CopyTo chain. Close releases them in reverse registration order and
// keeps going past individual failures, so a broken cleanup never masks
// the primary result.
type Scope struct {
	mu       sync.Mutex
	cleanups []func() error
}

// Defer registers a cleanup action.
func (s *Scope) Defer(cleanup func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, cleanup)
}

// TempDir creates a uniquely named directory under the system temp root
// and registers its recursive removal with the scope.
func (s *Scope) TempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", err
	}
	s.Defer(func() error {
		return os.RemoveAll(dir)
	})
	return dir, nil
}

// Close runs all registered cleanups, last registered first. Failures are
// logged and swallowed.
func (s *Scope) Close() {
	s.mu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			log.L.Warnf("cleanup failed: %v", err)
		}
	}
}
