package storage

import (
	"testing"
	"time"
)

func TestBuildChatlogArchivePath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildChatlogArchivePath(ts, 1001, 2000)
	if err != nil {
		t.Fatalf("BuildChatlogArchivePath() error = %v", err)
	}
	want := "chatlogs/date=2026-02-20/chatlogs-000000001001-000000002000.parquet"
	if key != want {
		t.Fatalf("BuildChatlogArchivePath() = %q, want %q", key, want)
	}
}

func TestBuildChatlogArchivePathRejectsBadRange(t *testing.T) {
	if _, err := BuildChatlogArchivePath(time.Now(), 0, 5); err == nil {
		t.Fatal("expected error for zero first id")
	}
	if _, err := BuildChatlogArchivePath(time.Now(), 9, 5); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestParseChatlogArchivePath(t *testing.T) {
	first, last, ok := ParseChatlogArchivePath("prod/chatlogs/date=2026-02-20/chatlogs-000000001001-000000002000.parquet")
	if !ok || first != 1001 || last != 2000 {
		t.Fatalf("ParseChatlogArchivePath() = %d, %d, %v", first, last, ok)
	}
	if _, _, ok := ParseChatlogArchivePath("chatlogs/date=2026-02-20/other.parquet"); ok {
		t.Fatal("expected unrelated key to be ignored")
	}
}
