package handlers

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm/clause"

	"github.com/procendp/stenodesk/internal/models"
	"github.com/procendp/stenodesk/internal/repositories"
	"github.com/procendp/stenodesk/internal/utils"
)

// GET /admin/templates
func ListTemplates(w http.ResponseWriter, r *http.Request) {
	var templates []models.Template
	if err := repositories.DB.Order("name ASC").Find(&templates).Error; err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database query failed",
		})
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Templates",
		Data:    templates,
	})
}

// PUT /admin/templates
// Upserts a template by name. Statuses without a stored template fall
// back to the built-in defaults, so deleting one just restores those.
func UpsertTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Subject string `json:"subject"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Name == "" || input.Content == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}
	if t := models.TemplateType(input.Type); t != models.TemplateSMS && t != models.TemplateEmail {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Type must be sms or email",
		})
		return
	}

	tpl := models.Template{
		Name:    input.Name,
		Type:    models.TemplateType(input.Type),
		Subject: input.Subject,
		Content: input.Content,
	}
	err := repositories.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "subject", "content", "updated_at"}),
	}).Create(&tpl).Error
	if err != nil {
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database upsert failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Template saved",
		Data:    tpl,
	})
}
