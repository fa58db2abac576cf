// Package handlers implements the producer HTTP surface: job submission and
// ledger reads. The worker process consumes what these handlers publish.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
)

// TaskPublisher is the queue side of the producer. *queue.Publisher
// implements it.
type TaskPublisher interface {
	Publish(ctx context.Context, msg *domain.TaskMessage) error
}

type App struct {
	Jobs      domain.JobRepository
	Publisher TaskPublisher
	Logger    infra.Logger
}

func NewApp(jobs domain.JobRepository, publisher TaskPublisher, logger infra.Logger) *App {
	return &App{Jobs: jobs, Publisher: publisher, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
