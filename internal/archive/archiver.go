package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/busassist/busassist/internal/chatlog"
	"github.com/busassist/busassist/internal/observability"
	"github.com/busassist/busassist/internal/storage"
)

const (
	DefaultBatchSize = 1000
	DefaultInterval  = 5 * time.Minute

	putAttempts = 2
)

// Source yields chat log rows with ids above a cursor, ascending.
type Source interface {
	ListSince(ctx context.Context, afterChatID int64, limit int) ([]chatlog.Record, error)
}

// Purger deletes archived rows from the source store.
type Purger interface {
	PurgeArchived(ctx context.Context, throughChatID int64, cutoff time.Time) (int64, error)
}

type Config struct {
	BatchSize int
	Interval  time.Duration
	// Retention enables purging of archived rows older than this. Zero
	// disables purging.
	Retention time.Duration
	// SettleLag is how old a row must be before it is archived. A batch
	// stops at the first younger row, so ids that commit out of order
	// below the cursor are still picked up.
	SettleLag time.Duration
}

// Service copies chat logs into parquet objects. Progress is derived from the
// object keys already present, so a restarted archiver resumes where the last
// successful upload ended.
type Service struct {
	Source      Source
	Purger      Purger
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Batch struct {
	Key         string
	RecordCount int64
	FirstChatID int64
	LastChatID  int64
	SizeBytes   int64
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Drain(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "archive cycle failed", slog.Any("error", err))
			}
		} else if _, err := s.Purge(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "retention cycle failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain archives batches until the source has nothing newer than the cursor.
func (s *Service) Drain(ctx context.Context) ([]Batch, error) {
	s.ensureDefaults()
	cursor, err := s.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	batches := make([]Batch, 0)
	for {
		if err := ctx.Err(); err != nil {
			return batches, err
		}
		batch, ok, err := s.archiveAfter(ctx, cursor)
		if err != nil {
			return batches, err
		}
		if !ok {
			return batches, nil
		}
		batches = append(batches, batch)
		cursor = batch.LastChatID
		if batch.RecordCount < int64(s.Config.BatchSize) {
			return batches, nil
		}
	}
}

// ProcessOnce archives at most one batch.
func (s *Service) ProcessOnce(ctx context.Context) (Batch, bool, error) {
	s.ensureDefaults()
	cursor, err := s.Cursor(ctx)
	if err != nil {
		return Batch{}, false, err
	}
	return s.archiveAfter(ctx, cursor)
}

// Purge removes source rows that are both archived and older than the
// retention window. It is a no-op without a Purger or a positive Retention.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	s.ensureDefaults()
	if s.Purger == nil || s.Config.Retention <= 0 {
		return 0, nil
	}
	cursor, err := s.Cursor(ctx)
	if err != nil {
		return 0, err
	}
	if cursor == 0 {
		return 0, nil
	}
	cutoff := s.Clock().Add(-s.Config.Retention)
	deleted, err := s.Purger.PurgeArchived(ctx, cursor, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge through chat id %d: %w", cursor, err)
	}
	observability.AddPurgedChatlogs(deleted)
	if s.Logger != nil && deleted > 0 {
		s.Logger.InfoContext(ctx, "purged archived chatlogs",
			slog.Int64("through_chat_id", cursor),
			slog.Time("cutoff", cutoff),
			slog.Int64("deleted", deleted),
		)
	}
	return deleted, nil
}

// Cursor is the highest chat id already archived, or zero.
func (s *Service) Cursor(ctx context.Context) (int64, error) {
	infos, err := s.ObjectStore.List(ctx, storage.ChatlogPrefix)
	if err != nil {
		return 0, fmt.Errorf("list archive objects: %w", err)
	}
	var cursor int64
	for _, info := range infos {
		_, last, ok := storage.ParseChatlogArchivePath(info.Key)
		if ok && last > cursor {
			cursor = last
		}
	}
	return cursor, nil
}

func (s *Service) archiveAfter(ctx context.Context, cursor int64) (Batch, bool, error) {
	records, err := s.Source.ListSince(ctx, cursor, s.Config.BatchSize)
	if err != nil {
		return Batch{}, false, fmt.Errorf("list chatlogs after %d: %w", cursor, err)
	}
	settledBefore := s.Clock().Add(-s.Config.SettleLag)
	for i, record := range records {
		if record.CreatedAt.After(settledBefore) {
			records = records[:i]
			break
		}
	}
	if len(records) == 0 {
		return Batch{}, false, nil
	}

	encoded, err := EncodeChatlogs(records)
	if err != nil {
		return Batch{}, false, fmt.Errorf("encode chatlogs to parquet: %w", err)
	}

	key, err := storage.BuildChatlogArchivePath(s.Clock(), encoded.FirstChatID, encoded.LastChatID)
	if err != nil {
		return Batch{}, false, fmt.Errorf("build archive path: %w", err)
	}

	info, err := s.upload(ctx, key, encoded.Data)
	if err != nil {
		return Batch{}, false, err
	}
	observability.AddArchivedChatlogs(int(encoded.RecordCount))

	batch := Batch{
		Key:         key,
		RecordCount: encoded.RecordCount,
		FirstChatID: encoded.FirstChatID,
		LastChatID:  encoded.LastChatID,
		SizeBytes:   info.Size,
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "archived chatlogs",
			slog.String("object_path", key),
			slog.Int64("first_chat_id", batch.FirstChatID),
			slog.Int64("last_chat_id", batch.LastChatID),
			slog.Int64("record_count", batch.RecordCount),
		)
	}
	return batch, true, nil
}

// upload writes data under key and confirms the stored size. The cursor is
// read back from object keys, so an object that still has the wrong size
// after a rewrite is removed before the error is returned.
func (s *Service) upload(ctx context.Context, key string, data []byte) (storage.ObjectInfo, error) {
	size := int64(len(data))
	var info storage.ObjectInfo
	for attempt := 1; attempt <= putAttempts; attempt++ {
		if _, err := s.ObjectStore.Put(ctx, key, bytes.NewReader(data), size, storage.PutOptions{ContentType: ParquetContentType}); err != nil {
			return storage.ObjectInfo{}, fmt.Errorf("put parquet object: %w", err)
		}
		stat, err := s.ObjectStore.Stat(ctx, key)
		if err != nil {
			return storage.ObjectInfo{}, fmt.Errorf("stat parquet object: %w", err)
		}
		info = stat
		if stat.Size == size {
			return stat, nil
		}
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "archived object size mismatch",
				slog.String("object_path", key),
				slog.Int64("want_bytes", size),
				slog.Int64("got_bytes", stat.Size),
				slog.Int("attempt", attempt),
			)
		}
	}
	if err := s.ObjectStore.Delete(ctx, key); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("remove short parquet object %s: %w", key, err)
	}
	return storage.ObjectInfo{}, fmt.Errorf("archived object %s holds %d bytes, want %d", key, info.Size, size)
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = func() time.Time { return time.Now().UTC() }
	}
	if s.Config.BatchSize <= 0 {
		s.Config.BatchSize = DefaultBatchSize
	}
	if s.Config.Interval <= 0 {
		s.Config.Interval = DefaultInterval
	}
	if s.Config.SettleLag < 0 {
		s.Config.SettleLag = 0
	}
}
