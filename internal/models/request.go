package models

import (
	"time"
)

// Status is the shared vocabulary for both the per-file work state and
// the per-order business state.
type Status string

const (
	StatusReceived         Status = "received"
	StatusPaymentCompleted Status = "payment_completed"
	StatusInProgress       Status = "in_progress"
	StatusWorkCompleted    Status = "work_completed"
	StatusSent             Status = "sent"
	StatusImpossible       Status = "impossible"
	StatusCancelled        Status = "cancelled"
	StatusRefunded         Status = "refunded"
)

type DraftFormat string

const (
	DraftHWP  DraftFormat = "hwp"
	DraftTXT  DraftFormat = "txt"
	DraftDOCX DraftFormat = "docx"
)

// FinalOption is the final-deliverable packaging choice. Surcharges are
// fixed per option (KRW).
type FinalOption string

const (
	FinalFile        FinalOption = "file"
	FinalFilePost    FinalOption = "file_post"
	FinalFilePostCD  FinalOption = "file_post_cd"
	FinalFilePostUSB FinalOption = "file_post_usb"
)

// Surcharge returns the extra charge for the packaging option in KRW.
func (o FinalOption) Surcharge() int64 {
	switch o {
	case FinalFilePost:
		return 5000
	case FinalFilePostCD:
		return 6000
	case FinalFilePostUSB:
		return 10000
	default:
		return 0
	}
}

// Request is one uploaded file's processing record. Requests created in
// the same submission batch share an OrderID; the order itself has no
// row of its own.
type Request struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	RequestID string `json:"requestId" gorm:"uniqueIndex;size:16"`
	OrderID   string `json:"orderId" gorm:"index;size:14"`

	Name    string `json:"name" gorm:"size:100;not null"`
	Email   string `json:"email" gorm:"index;not null"`
	Phone   string `json:"phone" gorm:"size:20"`
	Address string `json:"address" gorm:"size:255"`

	RecordingDate     *time.Time `json:"recordingDate"`
	RecordingLocation string     `json:"recordingLocation" gorm:"size:200"`
	RecordingType     string     `json:"recordingType" gorm:"size:20;default:전체"`
	PartialRange      string     `json:"partialRange" gorm:"size:200"`
	SpeakerCount      int        `json:"speakerCount" gorm:"default:1"`
	SpeakerNames      string     `json:"speakerNames" gorm:"size:255"`
	TotalDuration     string     `json:"totalDuration" gorm:"size:50"`
	AdditionalInfo    string     `json:"additionalInfo" gorm:"type:text"`

	Status       Status `json:"status" gorm:"size:20;default:received"`
	OrderStatus  Status `json:"orderStatus" gorm:"size:20;default:received"`
	StatusReason string `json:"statusReason" gorm:"type:text"`

	DraftFormat DraftFormat `json:"draftFormat" gorm:"size:20;default:hwp"`
	FinalOption FinalOption `json:"finalOption" gorm:"size:20;default:file"`

	EstimatedPrice    *int64 `json:"estimatedPrice"`
	PaymentStatus     bool   `json:"paymentStatus" gorm:"default:false"`
	PaymentAmount     *int64 `json:"paymentAmount"`
	RefundAmount      *int64 `json:"refundAmount"`
	PriceChangeReason string `json:"priceChangeReason" gorm:"type:text"`

	TranscriptFileID *uint `json:"transcriptFileId" gorm:"index"`
	TranscriptFile   *File `json:"transcriptFile,omitempty" gorm:"foreignKey:TranscriptFileID"`

	Files []File `json:"files,omitempty" gorm:"foreignKey:RequestRef"`

	IsTemporary bool      `json:"isTemporary" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
