package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/procendp/stenodesk/internal/models"
	"github.com/procendp/stenodesk/internal/notification"
	"github.com/procendp/stenodesk/internal/orders"
	"github.com/procendp/stenodesk/internal/repositories"
	"github.com/procendp/stenodesk/internal/utils"
)

// PATCH /admin/requests/{requestID}/status
// Changes the request- or order-level status. The mutation commits even
// when the notification fails; the notification outcome rides along in
// the response.
func ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	requestID := r.PathValue("requestID")

	var input struct {
		Status  string `json:"status"`
		Level   string `json:"level"`
		Reason  string `json:"reason"`
		Enforce *bool  `json:"enforce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Status == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	level := orders.LevelRequest
	if input.Level == "order" {
		level = orders.LevelOrder
	}
	enforce := true
	if input.Enforce != nil {
		enforce = *input.Enforce
	}

	result, err := Orders.ChangeStatus(r.Context(), orders.ChangeStatusInput{
		RequestID: requestID,
		Level:     level,
		NewStatus: models.Status(input.Status),
		Reason:    input.Reason,
		Enforce:   enforce,
	})
	if err != nil {
		var invalid *orders.InvalidTransitionError
		switch {
		case errors.Is(err, orders.ErrRequestNotFound):
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "Request not found",
			})
		case errors.Is(err, orders.ErrReasonRequired):
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "A reason is required for this status",
			})
		case errors.As(err, &invalid):
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: invalid.Error(),
			})
		default:
			utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
				Success: false,
				Message: "Failed to change status",
			})
		}
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Status changed",
		Data: map[string]any{
			"request":            result.Request,
			"notificationSent":   result.NotificationSent,
			"notificationErrors": result.NotificationErrors,
		},
	})
}

// POST /admin/orders
// Back-office order creation. Rows are permanent from the start, ids
// carry the DB prefix and no notification fires.
func CreateBackOfficeOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input createOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}
	if input.Name == "" || len(input.Files) == 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Name and at least one file entry are required",
		})
		return
	}

	serviceInput := input.toServiceInput()
	serviceInput.DBOrder = true
	serviceInput.Temporary = false

	created, err := Orders.CreateOrder(r.Context(), serviceInput)
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to create order",
		})
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Order created",
		Data: map[string]any{
			"orderId":  created[0].OrderID,
			"requests": created,
		},
	})
}

// DELETE /admin/orders
// Bulk order deletion. Blobs go first, best-effort; row deletion never
// waits on the object store.
func DeleteOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input struct {
		OrderIDs []string `json:"orderIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || len(input.OrderIDs) == 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	requests, files, errs := Orders.DeleteOrders(r.Context(), input.OrderIDs)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: len(errs) == 0,
		Message: "Deletion finished",
		Data: map[string]any{
			"requestsDeleted": requests,
			"filesDeleted":    files,
			"errors":          errs,
		},
	})
}

// POST /admin/orders/{orderID}/guides
func SendGuide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	orderID := r.PathValue("orderID")

	var input struct {
		EmailType string `json:"emailType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.EmailType == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	result, err := Notify.SendGuide(r.Context(), orderID, notification.EmailType(input.EmailType))
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to send guide",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: result.SuccessCount == len(result.Recipients),
		Message: "Guide dispatch finished",
		Data:    result,
	})
}

// GET /admin/send-history
// Duplicate-send check. The result is a warning for the operator to
// confirm against, never a block.
func CheckSendHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	q := notification.HistoryQuery{
		OrderID:   r.URL.Query().Get("orderId"),
		RequestID: r.URL.Query().Get("requestId"),
		EmailType: notification.EmailType(r.URL.Query().Get("emailType")),
	}
	if raw := r.URL.Query().Get("paymentAmount"); raw != "" {
		if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
			q.PaymentAmount = &amount
		}
	}
	if q.EmailType == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "emailType is required",
		})
		return
	}

	result, err := Notify.CheckSendHistory(r.Context(), q)
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to check send history",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Send history checked",
		Data:    result,
	})
}

// GET /admin/views/integrated | /admin/views/requests | /admin/views/orders
func IntegratedView(w http.ResponseWriter, r *http.Request) {
	reqs, err := Orders.IntegratedView(r.Context())
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to load view",
		})
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Integrated view",
		Data:    reqs,
	})
}

func RequestView(w http.ResponseWriter, r *http.Request) {
	reqs, err := Orders.RequestView(r.Context())
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to load view",
		})
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Request view",
		Data:    reqs,
	})
}

func OrderView(w http.ResponseWriter, r *http.Request) {
	summaries, err := Orders.OrderView(r.Context())
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to load view",
		})
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Order view",
		Data:    summaries,
	})
}

// POST /admin/requests/{requestID}/transcript/presign
// Presigns the transcript upload under a key tied to the request.
func PresignTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	requestID := r.PathValue("requestID")

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

	var req models.Request
	if err := repositories.DB.Where("request_id = ?", requestID).First(&req).Error; err != nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Success: false,
			Message: "Request not found",
		})
		return
	}

	key := utils.TranscriptKey(requestID, input.FileName)
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

// POST /admin/requests/{requestID}/transcript
// Attaches a finished transcript to a request. The blob must already be
// uploaded and committed as a File row.
func AttachTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	requestID := r.PathValue("requestID")

	var input struct {
		ObjectKey string `json:"objectKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ObjectKey == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	var req models.Request
	if err := repositories.DB.Where("request_id = ?", requestID).First(&req).Error; err != nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Success: false,
			Message: "Request not found",
		})
		return
	}

	file, err := repositories.Data.FileByKey(r.Context(), input.ObjectKey)
	if err != nil || file == nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "No committed upload for that key",
		})
		return
	}

	req.TranscriptFileID = &file.ID
	if err := repositories.DB.Save(&req).Error; err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database update failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Transcript attached",
		Data:    req,
	})
}

// GET /admin/files/{id}/download
func PresignDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid file id",
		})
		return
	}

	var file models.File
	if err := repositories.DB.First(&file, uint(id)).Error; err != nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Success: false,
			Message: "File not found",
		})
		return
	}

	url, err := repositories.Objects.PresignGetURL(r.Context(), file.ObjectKey, 15*time.Minute)
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to presign download",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Download URL created",
		Data: map[string]any{
			"downloadUrl":  url,
			"originalName": file.OriginalName,
		},
	})
}
