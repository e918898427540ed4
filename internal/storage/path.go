package storage

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"time"
)

// ChatlogPrefix is the key prefix shared by every chat log archive object.
const ChatlogPrefix = "chatlogs"

var archiveNamePattern = regexp.MustCompile(`^chatlogs-([0-9]{12})-([0-9]{12})\.parquet$`)

// BuildChatlogArchivePath names the object holding chat ids first..last.
// Ids are zero padded so keys sort in id order.
func BuildChatlogArchivePath(archivedAt time.Time, firstChatID, lastChatID int64) (string, error) {
	if firstChatID <= 0 || lastChatID < firstChatID {
		return "", fmt.Errorf("invalid chat id range %d..%d", firstChatID, lastChatID)
	}
	ts := archivedAt.UTC()
	return path.Join(
		ChatlogPrefix,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("chatlogs-%012d-%012d.parquet", firstChatID, lastChatID),
	), nil
}

// ParseChatlogArchivePath returns the chat id range encoded in key.
func ParseChatlogArchivePath(key string) (firstChatID, lastChatID int64, ok bool) {
	matches := archiveNamePattern.FindStringSubmatch(path.Base(key))
	if len(matches) != 3 {
		return 0, 0, false
	}
	first, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	last, err := strconv.ParseInt(matches[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return first, last, true
}
