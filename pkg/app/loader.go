package app

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader reads the file referenced by a URL.
type FileLoader func(u *url.URL) ([]byte, error)

var (
	loadersMu sync.RWMutex
	loaders   = map[string]FileLoader{
		"":     loadLocalFile,
		"file": loadLocalFile,
	}
)

// RegisterFileLoader adds a loader for a URL scheme. Registering the same
// scheme twice panics.
func RegisterFileLoader(scheme string, loader FileLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()

	if _, exists := loaders[scheme]; exists {
		panic(fmt.Sprintf("file loader already registered for scheme '%s'", scheme))
	}
	loaders[scheme] = loader
}

// LoadFile reads fileURL with the loader registered for its scheme. Plain
// paths are read from the local filesystem.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	loadersMu.RLock()
	loader, exists := loaders[u.Scheme]
	loadersMu.RUnlock()
	if !exists {
		return nil, errors.Errorf("no file loader for scheme '%s'", u.Scheme)
	}

	return loader(u)
}

func loadLocalFile(u *url.URL) ([]byte, error) {
	return os.ReadFile(u.Path)
}
