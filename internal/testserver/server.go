// Package testserver is an in-memory stand-in for the records portal,
// implementing just enough of the REST contract to drive integration
// tests of the full client stack without a real backend.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Server keeps one mutable table per resource behind a mutex and serves
// the portal's envelope shape for every route.
type Server struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	nextID map[string]int64
	token  string
	router chi.Router
}

// New builds a server. A non-empty token makes every route demand the
// matching bearer token.
func New(token string) *Server {
	s := &Server{
		tables: make(map[string][]map[string]any),
		nextID: make(map[string]int64),
		token:  token,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.StripSlashes)
	router.Use(s.authenticate)

	router.Route("/{resource}", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Put("/multiple", s.handleBulkUpdate)
		r.Get("/{id}", s.handleFind)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleSwitch)
	})

	s.router = router

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Seed inserts rows directly, assigning ids to rows that lack one.
func (s *Server) Seed(resource string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if _, ok := row["id"]; !ok {
			row["id"] = float64(s.allocateID(resource))
		} else if id, ok := row["id"].(float64); ok && int64(id) >= s.nextID[resource] {
			s.nextID[resource] = int64(id) + 1
		}

		if _, ok := row["deleted_at"]; !ok {
			row["deleted_at"] = nil
		}

		s.tables[resource] = append(s.tables[resource], row)
	}
}

// Rows returns a deep-enough copy of the resource's current rows.
func (s *Server) Rows(resource string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]map[string]any, 0, len(s.tables[resource]))
	for _, row := range s.tables[resource] {
		clone := make(map[string]any, len(row))
		for k, v := range row {
			clone[k] = v
		}
		rows = append(rows, clone)
	}

	return rows
}

func (s *Server) allocateID(resource string) int64 {
	if s.nextID[resource] == 0 {
		s.nextID[resource] = 1
	}

	id := s.nextID[resource]
	s.nextID[resource]++

	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeEnvelope(w, http.StatusUnauthorized, model.Envelope{
				Status:  false,
				Message: "invalid or missing token",
			})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	conditions, err := parseConditionals(r.URL.Query().Get("conditionals"))
	if err != nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: err.Error()})

		return
	}

	columns, err := parseStringList(r.URL.Query().Get("columns"))
	if err != nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: err.Error()})

		return
	}

	page, perPage := parsePagination(r)

	s.mu.Lock()
	var matched []map[string]any
	for _, row := range s.tables[resource] {
		if matchesAll(row, conditions) {
			matched = append(matched, row)
		}
	}
	s.mu.Unlock()

	sortRows(matched, r.URL.Query().Get("sort"))

	totalItems := len(matched)
	totalPages := 1
	if perPage > 0 {
		totalPages = (totalItems + perPage - 1) / perPage
		if totalPages == 0 {
			totalPages = 1
		}
	}

	start := (page - 1) * perPage
	if start > totalItems {
		start = totalItems
	}

	end := start + perPage
	if end > totalItems {
		end = totalItems
	}

	pageRows := make([]map[string]any, 0, end-start)
	for _, row := range matched[start:end] {
		pageRows = append(pageRows, project(row, columns))
	}

	data, _ := json.Marshal(pageRows)

	writeEnvelope(w, http.StatusOK, model.Envelope{
		Status:     true,
		Data:       data,
		Message:    "ok",
		Page:       &page,
		PerPage:    &perPage,
		TotalPages: &totalPages,
		TotalItems: &totalItems,
	})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid id"})

		return
	}

	s.mu.Lock()
	row := s.findRow(resource, id)
	s.mu.Unlock()

	if row == nil {
		writeEnvelope(w, http.StatusNotFound, model.Envelope{Status: false, Message: "record not found"})

		return
	}

	data, _ := json.Marshal(row)
	writeEnvelope(w, http.StatusOK, model.Envelope{Status: true, Data: data, Message: "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var (
		fileURL string
		payload map[string]any
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid multipart body"})

			return
		}

		if err := json.Unmarshal([]byte(r.FormValue("data")), &payload); err != nil {
			writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid data field"})

			return
		}

		if _, header, err := r.FormFile("file"); err == nil {
			fileURL = "/uploads/" + header.Filename
		}
	} else {
		var body struct {
			Data json.RawMessage `json:"data"`
		}

		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
			writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "missing data field"})

			return
		}

		// bulk create: an array under data inserts every element
		var many []map[string]any
		if err := json.Unmarshal(body.Data, &many); err == nil {
			s.mu.Lock()
			for _, row := range many {
				s.insertRow(resource, row)
			}
			s.mu.Unlock()

			writeEnvelope(w, http.StatusOK, model.Envelope{Status: true, Message: "records created"})

			return
		}

		if err := json.Unmarshal(body.Data, &payload); err != nil {
			writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid data field"})

			return
		}
	}

	s.mu.Lock()
	row := s.insertRow(resource, payload)
	s.mu.Unlock()

	data, _ := json.Marshal(row)
	writeEnvelope(w, http.StatusOK, model.Envelope{
		Status:  true,
		Data:    data,
		Message: "record created",
		URL:     fileURL,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid id"})

		return
	}

	var body struct {
		Data map[string]any `json:"data"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "missing data field"})

		return
	}

	s.mu.Lock()
	row := s.findRow(resource, id)
	if row != nil {
		for key, value := range body.Data {
			if key == "id" {
				continue
			}
			row[key] = value
		}
	}
	s.mu.Unlock()

	if row == nil {
		writeEnvelope(w, http.StatusNotFound, model.Envelope{Status: false, Message: "record not found"})

		return
	}

	data, _ := json.Marshal(row)
	writeEnvelope(w, http.StatusOK, model.Envelope{Status: true, Data: data, Message: "record updated"})
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var body struct {
		Data []map[string]any `json:"data"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "missing data field"})

		return
	}

	s.mu.Lock()
	for _, patch := range body.Data {
		id, ok := patch["id"].(float64)
		if !ok {
			continue
		}

		if row := s.findRow(resource, int64(id)); row != nil {
			for key, value := range patch {
				if key == "id" {
					continue
				}
				row[key] = value
			}
		}
	}
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, model.Envelope{Status: true, Message: "records updated"})
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusUnprocessableEntity, model.Envelope{Status: false, Message: "invalid id"})

		return
	}

	s.mu.Lock()
	row := s.findRow(resource, id)
	if row != nil {
		if row["deleted_at"] == nil {
			row["deleted_at"] = time.Now().UTC().Format(time.RFC3339)
		} else {
			row["deleted_at"] = nil
		}
	}
	s.mu.Unlock()

	if row == nil {
		writeEnvelope(w, http.StatusNotFound, model.Envelope{Status: false, Message: "record not found"})

		return
	}

	writeEnvelope(w, http.StatusOK, model.Envelope{Status: true, Message: "record toggled"})
}

func (s *Server) findRow(resource string, id int64) map[string]any {
	for _, row := range s.tables[resource] {
		if rowID, ok := row["id"].(float64); ok && int64(rowID) == id {
			return row
		}
	}

	return nil
}

func (s *Server) insertRow(resource string, payload map[string]any) map[string]any {
	row := make(map[string]any, len(payload)+3)
	for key, value := range payload {
		row[key] = value
	}

	row["id"] = float64(s.allocateID(resource))
	row["created_at"] = time.Now().UTC().Format(time.RFC3339)
	row["deleted_at"] = nil

	s.tables[resource] = append(s.tables[resource], row)

	return row
}

func writeEnvelope(w http.ResponseWriter, status int, envelope model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func fmtError(what string) error {
	return fmt.Errorf("invalid %s parameter", what)
}
