package imagehost

import (
	"sync"

	"github.com/nattw/visionchat/internal/common"
)

// Blob is an image kept in process memory after an upload fallback.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore holds ephemeral images. References into it are only
// resolvable by this process while it lives; nothing here is durable.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

func (b *BlobStore) Put(data []byte, contentType string) (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.blobs[id] = Blob{Data: data, ContentType: contentType}
	b.mu.Unlock()
	return id, nil
}

func (b *BlobStore) Get(id string) (Blob, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[id]
	return blob, ok
}
