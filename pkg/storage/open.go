package storage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/book-viewer/pkg/utils"
)

// Backend names accepted by Open. They match config.ProgressBackend*.
const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Open creates the Store for a backend. An empty backend means badger.
func Open(ctx context.Context, backend, stateDir, name string, logger *logrus.Entry) (Store, error) {
	switch backend {
	case "", BackendBadger:
		return NewBadgerStore(ctx, stateDir, name, logger)
	case BackendFile:
		return NewFileStore(stateDir, name, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "unknown storage backend '%s'", backend)
	}
}
