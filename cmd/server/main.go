package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/api"
	"github.com/procendp/stenodesk/internal/api/handlers"
	"github.com/procendp/stenodesk/internal/config"
	"github.com/procendp/stenodesk/internal/repositories"
)

func main() {
	repositories.ConnectDatabase()
	repositories.InitObjectStore(config.Envs.S3)
	handlers.Init()

	port := config.Envs.Port

	mux := api.SetupRouter()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logrus.Infof("starting stenodesk server on port %s", port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatalf("could not listen on port %s: %v", port, err)
	}
}
