package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playpcd/pcdtrainer/internal/mapview"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// AdminScenarioResult acknowledges a scenario upload or deletion.
type AdminScenarioResult struct {
	Message  string           `json:"message"`
	Scenario *ScenarioSummary `json:"scenario,omitempty"`
}

// ValidationErrorResponse is returned when an uploaded scenario is rejected.
type ValidationErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// default window used to fit the initial view of uploads that carry none
const (
	fitWidth   = 1280
	fitHeight  = 800
	fitPadding = 40
)

// readUpload returns the uploaded document and its file name. Multipart
// uploads use the "file" field; any other body is the document itself,
// named by the ?fileName= query parameter.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("reading file field: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, filepath.Base(hdr.Filename), err
	}

	name := r.URL.Query().Get("fileName")
	if name == "" {
		name = "scenario.json"
	}
	data, err := io.ReadAll(r.Body)
	return data, filepath.Base(name), err
}

// parseScenario decodes and validates an uploaded scenario. The returned
// message is meant for the uploader.
func parseScenario(data []byte, fileName string) (*pcd.Scenario, *ValidationErrorResponse) {
	if !json.Valid(data) {
		return nil, &ValidationErrorResponse{Error: fileName + " is not a valid JSON document"}
	}

	schemaErr := &ValidationErrorResponse{Error: fileName + " does not have the correct JSON schema"}

	var sc pcd.Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		schemaErr.Details = []string{err.Error()}
		return nil, schemaErr
	}

	// ids and timestamps are assigned by the server
	sc.ID = ""
	sc.CreatedAt = time.Time{}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	if err := sc.Validate(); err != nil {
		schemaErr.Details = strings.Split(err.Error(), "\n")
		return nil, schemaErr
	}

	if sc.View.Zoom == 0 {
		vp := mapview.FitBounds(sc.Boundaries, fitWidth, fitHeight, fitPadding)
		sc.View = pcd.View{Longitude: vp.Longitude, Latitude: vp.Latitude, Zoom: vp.Zoom}
	}
	return &sc, nil
}

func handleAdminListScenarios(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := loader.List(r.Context())
		if err != nil {
			logger.Error("listing scenarios", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleAdminCreateScenario(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, fileName, err := readUpload(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}

		sc, verr := parseScenario(data, fileName)
		if verr != nil {
			writeJSON(w, http.StatusBadRequest, verr)
			return
		}

		if err := loader.Create(r.Context(), sc); err != nil {
			logger.Error("creating scenario", "file", fileName, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal database error when saving "+fileName)
			return
		}

		sum := summarize(sc)
		logger.Info("scenario created", "scenario", sc.ID, "admin", adminFrom(r).Email, "flights", sum.FlightCount, "pcds", sum.PCDCount)
		writeJSON(w, http.StatusCreated, AdminScenarioResult{
			Message:  fmt.Sprintf("Scenario #%s created from %s", sc.ID, fileName),
			Scenario: &sum,
		})
	}
}

// handleAdminGetScenario returns the full scenario, solution included.
func handleAdminGetScenario(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sc, err := loader.Get(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Scenario #%s not found", id))
			return
		}
		if err != nil {
			logger.Error("loading scenario", "scenario", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}

func handleAdminDeleteScenario(logger *slog.Logger, loader *ScenarioLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := loader.Delete(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Scenario #%s not found", id))
			return
		}
		if err != nil {
			logger.Error("deleting scenario", "scenario", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, AdminScenarioResult{Message: fmt.Sprintf("Scenario #%s deleted", id)})
	}
}
