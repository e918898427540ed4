package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/busassist/busassist/internal/chatlog"
)

// ParquetContentType is stored on every archive object.
const ParquetContentType = "application/vnd.apache.parquet"

type EncodeResult struct {
	Data         []byte
	RecordCount  int64
	FirstChatID  int64
	LastChatID   int64
	MinCreatedAt *time.Time
	MaxCreatedAt *time.Time
}

type parquetChatlog struct {
	ChatID          int64  `parquet:"chat_id"`
	UserID          int64  `parquet:"user_id"`
	MessageText     string `parquet:"message_text"`
	ResponseText    string `parquet:"response_text"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

// EncodeChatlogs writes records, which must be ordered by chat id, into one
// parquet file.
func EncodeChatlogs(records []chatlog.Record) (EncodeResult, error) {
	if len(records) == 0 {
		return EncodeResult{}, fmt.Errorf("records are required")
	}

	rows := make([]parquetChatlog, 0, len(records))
	result := EncodeResult{FirstChatID: records[0].ChatID}
	var prev int64

	for _, record := range records {
		if record.ChatID <= prev {
			return EncodeResult{}, fmt.Errorf("chat id %d out of order after %d", record.ChatID, prev)
		}
		prev = record.ChatID

		row := parquetChatlog{
			ChatID:       record.ChatID,
			UserID:       record.UserID,
			MessageText:  record.MessageText,
			ResponseText: record.ResponseText,
		}
		if !record.CreatedAt.IsZero() {
			createdAt := record.CreatedAt.UTC()
			row.CreatedAtUnixMs = createdAt.UnixMilli()
			if result.MinCreatedAt == nil || createdAt.Before(*result.MinCreatedAt) {
				copy := createdAt
				result.MinCreatedAt = &copy
			}
			if result.MaxCreatedAt == nil || createdAt.After(*result.MaxCreatedAt) {
				copy := createdAt
				result.MaxCreatedAt = &copy
			}
		}
		rows = append(rows, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetChatlog](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	result.Data = buf.Bytes()
	result.RecordCount = int64(len(rows))
	result.LastChatID = prev
	return result, nil
}
