package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/procendp/stenodesk/internal/models"
	"github.com/procendp/stenodesk/internal/orders"
	"github.com/procendp/stenodesk/internal/repositories"
	"github.com/procendp/stenodesk/internal/utils"
)

const presignExpiry = 15 * time.Minute

type fileInput struct {
	ObjectKey         string     `json:"objectKey"`
	OriginalName      string     `json:"originalName"`
	RecordingDate     *time.Time `json:"recordingDate"`
	RecordingLocation string     `json:"recordingLocation"`
	RecordingType     string     `json:"recordingType"`
	PartialRange      string     `json:"partialRange"`
	TotalDuration     string     `json:"totalDuration"`
	SpeakerCount      int        `json:"speakerCount"`
	SpeakerNames      string     `json:"speakerNames"`
	AdditionalInfo    string     `json:"additionalInfo"`
}

type createOrderInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`

	DraftFormat    models.DraftFormat `json:"draftFormat"`
	FinalOption    models.FinalOption `json:"finalOption"`
	EstimatedPrice *int64             `json:"estimatedPrice"`

	Files []fileInput `json:"files"`
}

func (in createOrderInput) toServiceInput() orders.NewOrderInput {
	out := orders.NewOrderInput{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		DraftFormat:    in.DraftFormat,
		FinalOption:    in.FinalOption,
		EstimatedPrice: in.EstimatedPrice,
		Temporary:      true,
	}
	for _, f := range in.Files {
		out.Files = append(out.Files, orders.NewFileInput{
			ObjectKey:         f.ObjectKey,
			OriginalName:      f.OriginalName,
			RecordingDate:     f.RecordingDate,
			RecordingLocation: f.RecordingLocation,
			RecordingType:     f.RecordingType,
			PartialRange:      f.PartialRange,
			TotalDuration:     f.TotalDuration,
			SpeakerCount:      f.SpeakerCount,
			SpeakerNames:      f.SpeakerNames,
			AdditionalInfo:    f.AdditionalInfo,
		})
	}
	return out
}

// POST /requests
// Creates one temporary request per file under a shared order id. The
// submission stays temporary until the customer confirms it.
func CreateRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input createOrderInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	if input.Name == "" || input.Email == "" || len(input.Files) == 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Name, email and at least one file are required",
		})
		return
	}

	created, err := Orders.CreateOrder(r.Context(), input.toServiceInput())
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to create requests",
		})
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Requests created",
		Data: map[string]any{
			"orderId":  created[0].OrderID,
			"requests": created,
		},
	})
}

// POST /requests/{requestID}/submit
// Promotes the whole order out of the temporary state and fires the
// first notification. Promotion succeeds even when the notification
// does not.
func SubmitRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	requestID := r.PathValue("requestID")
	if requestID == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Missing request id",
		})
		return
	}

	result, err := Orders.ConfirmSubmission(r.Context(), requestID)
	if err != nil {
		if err == orders.ErrRequestNotFound {
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "Request not found",
			})
			return
		}
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to submit",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Submission confirmed",
		Data: map[string]any{
			"orderId":            result.Request.OrderID,
			"notificationSent":   result.NotificationSent,
			"notificationErrors": result.NotificationErrors,
		},
	})
}

// POST /files/presign
// Hands the browser a presigned PUT URL so uploads bypass the server.
func PresignUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.FileName == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	key := utils.ObjectKey(input.FileName)
	url, err := repositories.Objects.PresignPutURL(r.Context(), key, input.ContentType, presignExpiry)
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to presign upload",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Upload URL created",
		Data: map[string]any{
			"objectKey": key,
			"uploadUrl": url,
			"expiresIn": int(presignExpiry.Seconds()),
		},
	})
}

// POST /files/complete
// Verifies the blob landed and commits the File row. Until a request
// references it the row counts as an unattached upload and is subject
// to expiry.
func CompleteUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input struct {
		ObjectKey    string `json:"objectKey"`
		OriginalName string `json:"originalName"`
		ContentType  string `json:"contentType"`
		Size         int64  `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ObjectKey == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	exists, err := repositories.Objects.Exists(r.Context(), input.ObjectKey)
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to verify upload",
		})
		return
	}
	if !exists {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Object not found in storage",
		})
		return
	}

	if existing, err := repositories.Data.FileByKey(r.Context(), input.ObjectKey); err == nil && existing != nil {
		utils.JSONResponse(w, http.StatusOK, utils.Payload{
			Success: true,
			Message: "Upload already recorded",
			Data:    existing,
		})
		return
	}

	file := models.File{
		ObjectKey:    input.ObjectKey,
		OriginalName: input.OriginalName,
		ContentType:  input.ContentType,
		Size:         input.Size,
	}
	if err := repositories.Data.CreateFile(r.Context(), &file); err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database insert failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Upload recorded",
		Data:    file,
	})
}
