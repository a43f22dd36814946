package models

import (
	"time"
)

// File is one stored binary: either a customer attachment (RequestRef
// set) or a delivered transcript (RequestRef nil, reachable through
// Request.TranscriptFileID instead).
type File struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RequestRef   *uint     `json:"requestId" gorm:"column:request_id;index"`
	ObjectKey    string    `json:"objectKey" gorm:"uniqueIndex;size:255;not null"`
	OriginalName string    `json:"originalName" gorm:"size:255;not null"`
	ContentType  string    `json:"contentType" gorm:"size:100"`
	Size         int64     `json:"size" gorm:"default:0"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Attached reports whether the file belongs to a request directly.
// Transcript reachability needs a query and lives in the store.
func (f *File) Attached() bool {
	return f.RequestRef != nil
}
