package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/patient-queue-engine/internal/notes"
	"github.com/hackgods/patient-queue-engine/internal/patient"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

type RouterConfig struct {
	Service  *queue.Service
	Patients patient.Directory
	Records  notes.Store
	Health   *HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	svc := cfg.Service
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", getQueueHandler(svc))
		r.Post("/", enqueueHandler(svc))
		r.Get("/waiting", getWaitingHandler(svc))
		r.Get("/current", getCurrentHandler(svc))
		r.Post("/timeline-sweep", timelineSweepHandler(svc))

		r.Get("/{id}", getEntryHandler(svc))
		r.Post("/{id}/nurse-complete", transitionHandler(svc.MarkNurseComplete))
		r.Post("/{id}/timeline-ready", transitionHandler(svc.MarkTimelineReady))
		r.Post("/{id}/start", transitionHandler(svc.StartConsultation))
		r.Post("/{id}/complete", transitionHandler(svc.CompleteConsultation))
		r.Post("/{id}/cancel", transitionHandler(svc.Cancel))
	})

	r.Route("/patients/{id}", func(r chi.Router) {
		r.Get("/queue", patientQueueHandler(svc))
		if cfg.Records != nil {
			r.Post("/notes", appendRecordHandler(cfg.Records, cfg.Patients, notes.KindNote))
			r.Get("/notes", listRecordsHandler(cfg.Records, cfg.Patients, notes.KindNote))
			r.Post("/history", appendRecordHandler(cfg.Records, cfg.Patients, notes.KindHistory))
			r.Get("/history", listRecordsHandler(cfg.Records, cfg.Patients, notes.KindHistory))
		}
	})

	return r
}
