package api

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/api/handlers"
	"github.com/procendp/stenodesk/internal/api/middleware"
	"github.com/procendp/stenodesk/internal/config"
)

func SetupRouter() http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(config.Envs.CorsConfig)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	publicMux := http.NewServeMux()
	publicMux.HandleFunc("/requests", handlers.CreateRequests)
	publicMux.HandleFunc("/requests/{requestID}/submit", handlers.SubmitRequest)
	publicMux.HandleFunc("/files/presign", handlers.PresignUpload)
	publicMux.HandleFunc("/files/complete", handlers.CompleteUpload)

	mainMux.Handle("/api/v1/public/",
		http.StripPrefix("/api/v1/public", publicMux),
	)

	authMux := http.NewServeMux()
	authMux.HandleFunc("/login", handlers.LoginStaff)

	mainMux.Handle("/api/v1/auth/",
		http.StripPrefix("/api/v1/auth", authMux),
	)

	// ---------- PROTECTED ROUTES ----------
	protectedMux := http.NewServeMux()

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/requests/{requestID}/status", handlers.ChangeStatus)
	adminMux.HandleFunc("/requests/{requestID}/transcript", handlers.AttachTranscript)
	adminMux.HandleFunc("/requests/{requestID}/transcript/presign", handlers.PresignTranscript)
	adminMux.HandleFunc("/orders", handlers.CreateBackOfficeOrder)
	adminMux.HandleFunc("/orders/delete", handlers.DeleteOrders)
	adminMux.HandleFunc("/orders/{orderID}/guides", handlers.SendGuide)
	adminMux.HandleFunc("/send-history", handlers.CheckSendHistory)
	adminMux.HandleFunc("/views/integrated", handlers.IntegratedView)
	adminMux.HandleFunc("/views/requests", handlers.RequestView)
	adminMux.HandleFunc("/views/orders", handlers.OrderView)
	adminMux.HandleFunc("/files/{id}/download", handlers.PresignDownload)
	adminMux.HandleFunc("/templates", handlers.ListTemplates)
	adminMux.HandleFunc("/templates/save", handlers.UpsertTemplate)
	adminMux.HandleFunc("/staff", handlers.CreateStaff)

	protectedMux.Handle("/admin/",
		http.StripPrefix("/admin", adminMux),
	)
	protectedMux.HandleFunc("/auth/logout", handlers.Logout)

	mainMux.Handle("/api/v1/",
		http.StripPrefix(
			"/api/v1",
			middleware.AuthMiddleware(protectedMux),
		),
	)

	logrus.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(handler)
	return handler
}
