package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"jobtracker/aggregate"
	"jobtracker/apperr"
	"jobtracker/application"
	"jobtracker/envelope"
	"jobtracker/metrics"
)

const maxBodyBytes = 1 << 20

type applicationService interface {
	Create(ctx context.Context, params application.CreateParams) (application.Record, error)
	UpdateByID(ctx context.Context, id string, params application.UpdateParams) (application.UpdateResult, error)
	Find(ctx context.Context, postingID, candidateID string) ([]application.Record, error)
	GetByID(ctx context.Context, id string) (application.Record, error)
	ListByPosting(ctx context.Context, postingID string) (application.ListResult, error)
}

type authorAggregator interface {
	ByAuthor(ctx context.Context, authorID string) ([]aggregate.EnrichedPosting, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the services to HTTP.
type Server struct {
	applications   applicationService
	aggregator     authorAggregator
	store          pinger
	log            logrus.FieldLogger
	requestTimeout time.Duration
}

func NewServer(apps applicationService, agg authorAggregator, store pinger, log logrus.FieldLogger, requestTimeout time.Duration) *Server {
	return &Server{
		applications:   apps,
		aggregator:     agg,
		store:          store,
		log:            log,
		requestTimeout: requestTimeout,
	}
}

// Routes returns the service's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler, s.logRequests, s.withTimeout)

	r.HandleFunc("/applications", s.handleFind).Methods(http.MethodGet)
	r.HandleFunc("/applications", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/applications/{id}", s.handleGetByID).Methods(http.MethodGet)
	r.HandleFunc("/applications/{id}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/postings/{postingId}/applications", s.handleListByPosting).Methods(http.MethodGet)
	r.HandleFunc("/authors/{authorId}/applications", s.handleByAuthor).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.write(w, http.StatusNotFound, envelope.Fail("Route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.write(w, http.StatusMethodNotAllowed, envelope.Fail("Method not allowed"))
	})
	return r
}

type createRequest struct {
	PostingID     string          `json:"postingId"`
	CandidateID   string          `json:"candidateId"`
	Status        string          `json:"status"`
	CandidateInfo json.RawMessage `json:"candidateInfo"`
}

type updateRequest struct {
	Status        string          `json:"status"`
	CandidateInfo json.RawMessage `json:"candidateInfo"`
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.applications.Find(r.Context(), q.Get("postingId"), q.Get("candidateId"))
	if err != nil {
		s.fail(w, r, "find applications", err, failure{
			invalid: "Invalid posting ID or candidate ID format",
			failed:  "Failed to fetch application status",
		})
		return
	}
	s.write(w, http.StatusOK, envelope.OK("Get application status successful", records))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.write(w, http.StatusBadRequest, envelope.Fail("Invalid request body"))
		return
	}

	created, err := s.applications.Create(r.Context(), application.CreateParams{
		PostingID:     req.PostingID,
		CandidateID:   req.CandidateID,
		Status:        application.Status(req.Status),
		CandidateInfo: nullToEmpty(req.CandidateInfo),
	})
	if err != nil {
		s.fail(w, r, "create application", err, failure{
			invalid: "Invalid posting ID or candidate ID format",
			failed:  "Failed to create application status",
		})
		return
	}
	s.write(w, http.StatusCreated, envelope.OK("Create application status successful", created))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.write(w, http.StatusBadRequest, envelope.Fail("Invalid request body"))
		return
	}

	res, err := s.applications.UpdateByID(r.Context(), mux.Vars(r)["id"], application.UpdateParams{
		Status:        application.Status(req.Status),
		CandidateInfo: nullToEmpty(req.CandidateInfo),
	})
	if err != nil {
		s.fail(w, r, "update application", err, failure{
			invalid: "Invalid application status ID format",
			failed:  "Failed to update application status by ID",
		})
		return
	}
	s.write(w, http.StatusOK, envelope.OK("Update application status by id successful", res))
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	rec, err := s.applications.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, "get application", err, failure{
			invalid:  "Invalid application status ID format",
			notFound: "Application status not found",
			failed:   "Failed to fetch application status",
		})
		return
	}
	s.write(w, http.StatusOK, envelope.OK("Get application status by id successful", rec))
}

func (s *Server) handleListByPosting(w http.ResponseWriter, r *http.Request) {
	res, err := s.applications.ListByPosting(r.Context(), mux.Vars(r)["postingId"])
	if err != nil {
		s.fail(w, r, "list applications by posting", err, failure{
			invalid: "Invalid posting ID format",
			failed:  "Failed to fetch application status by posting",
		})
		return
	}
	s.write(w, http.StatusOK, envelope.OK("Get application status by posting successful", res))
}

func (s *Server) handleByAuthor(w http.ResponseWriter, r *http.Request) {
	view, err := s.aggregator.ByAuthor(r.Context(), mux.Vars(r)["authorId"])
	if err != nil {
		s.fail(w, r, "aggregate by author", err, failure{
			invalid: "Invalid author ID format",
			failed:  "Failed to fetch application status by author",
		})
		return
	}
	s.write(w, http.StatusOK, envelope.OK("Get application status by author successful", view))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		s.write(w, http.StatusServiceUnavailable, envelope.Fail("Store unavailable"))
		return
	}
	s.write(w, http.StatusOK, envelope.OK("ok", nil))
}

// failure holds the client-facing messages for each outcome class.
type failure struct {
	invalid  string
	notFound string
	failed   string
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, msgs failure) {
	status := envelope.StatusFor(err)
	entry := s.log.WithFields(logrus.Fields{
		"op":     op,
		"code":   apperr.CodeOf(err),
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)

	switch status {
	case http.StatusBadRequest:
		entry.Debug("rejected request")
		s.write(w, status, envelope.Fail(msgs.invalid))
	case http.StatusNotFound:
		entry.Debug("record not found")
		msg := msgs.notFound
		if msg == "" {
			msg = msgs.failed
		}
		s.write(w, status, envelope.Fail(msg))
	default:
		entry.Error("request failed")
		s.write(w, status, envelope.Fail(msgs.failed))
	}
}

func (s *Server) write(w http.ResponseWriter, status int, env envelope.Envelope) {
	if err := envelope.Write(w, status, env); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// nullToEmpty treats an explicit JSON null like an absent field.
func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.requestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
