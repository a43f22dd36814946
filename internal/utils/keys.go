package utils

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectKey builds a collision-free storage key for an upload while
// keeping the original extension so content type survives round trips.
func ObjectKey(originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("uploads/%s/%s%s", time.Now().Format("2006/01"), uuid.NewString(), ext)
}

// TranscriptKey builds a storage key for a finished transcript tied to
// a request identifier.
func TranscriptKey(requestID, originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("transcripts/%s/%s%s", requestID, uuid.NewString(), ext)
}
