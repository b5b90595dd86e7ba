package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// SnapshotStore архивирует производные артефакты (JSON-снимки таблиц,
// протоколы счёта) в объектное хранилище. Не является источником истины:
// каноничные данные всегда в БД.
type SnapshotStore interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
