package interfaces

import "golang.org/x/net/context"

// StorageService is the optional raw-message archive.
type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
