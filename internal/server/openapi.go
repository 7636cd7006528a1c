package server

import (
	"encoding/json"
	"net/http"

	"github.com/paulmach/orb/geojson"
	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playpcd/pcdtrainer/internal/mapview"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each checked dependency to its status.
type HealthResponse map[string]struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resps                              []response
}

type response struct {
	body        any
	status      int
	contentType string
}

// Request structures that only carry parameters.
type (
	gamePath     struct{ GameID string `path:"gameID"` }
	scenarioPath struct{ ID string `path:"id"` }
	selectInput  struct {
		gamePath
		SelectRequest
	}
	featuresInput struct {
		gamePath
		mapview.Viewport
	}
	wsInput struct {
		gamePath
		Encoding string `query:"encoding" enum:"json,msgpack"`
	}
	resultsQuery struct {
		ScenarioID string `query:"scenarioId"`
	}
)

func okResp(body any) response               { return response{body: body, status: http.StatusOK} }
func statusResp(code int, body any) response { return response{body: body, status: code} }
func errResp(code int) response              { return response{body: ErrorResponse{}, status: code} }

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "PCD Trainer API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the spot-the-conflict trainer: scenarios, game sessions and the map overlay.")

	ops := []operation{
		{
			method: http.MethodGet, path: "/healthz",
			summary: "Health check", description: "Returns the health status of backend dependencies.",
			resps: []response{okResp(HealthResponse{}), statusResp(http.StatusServiceUnavailable, HealthResponse{})},
		},
		{
			method: http.MethodGet, path: "/api/scenarios",
			summary: "List scenarios", description: "Returns every playable scenario.",
			resps: []response{okResp([]ScenarioSummary{})},
		},
		{
			method: http.MethodGet, path: "/api/scenarios/random",
			summary: "Random scenario", description: "Picks one scenario at random.",
			resps: []response{okResp(ScenarioSummary{}), errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodPost, path: "/api/games",
			summary: "Start a game", description: "Creates a game session for a scenario and starts its countdown. The solution is not included.",
			req:   CreateGameRequest{},
			resps: []response{statusResp(http.StatusCreated, GameResponse{}), errResp(http.StatusBadRequest), errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodGet, path: "/api/games/{gameID}",
			summary: "Get game state", description: "Returns the selection, the judged pairs, the countdown and, once over, the report.",
			req:   gamePath{},
			resps: []response{okResp(GameStateResponse{}), errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodPost, path: "/api/games/{gameID}/select",
			summary: "Click a flight", description: "Applies a click on a flight and returns its outcome.",
			req:   selectInput{},
			resps: []response{okResp(SelectResponse{}), errResp(http.StatusBadRequest), errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodPost, path: "/api/games/{gameID}/features",
			summary: "Render overlay", description: "Synthesizes the GeoJSON overlay for the game as seen through the given viewport.",
			req:   featuresInput{},
			resps: []response{okResp(geojson.FeatureCollection{}), errResp(http.StatusBadRequest), errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodGet, path: "/api/games/{gameID}/events",
			summary: "SSE event stream", description: "Server-Sent Events stream of selections, judged pairs and the end of the round.",
			req:   gamePath{},
			resps: []response{{status: http.StatusOK, contentType: "text/event-stream"}, errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodGet, path: "/api/games/{gameID}/ws",
			summary: "Map host channel", description: "Upgrades to a WebSocket. The client sends view and click messages; the server answers with state and features. Use ?encoding=msgpack for binary frames.",
			req:   wsInput{},
			resps: []response{{status: http.StatusSwitchingProtocols, contentType: "text/plain"}, errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodDelete, path: "/api/games/{gameID}",
			summary: "End a game", description: "Tears the session down and cancels its countdown. No report is produced.",
			req:   gamePath{},
			resps: []response{{status: http.StatusNoContent}, errResp(http.StatusNotFound)},
		},
		{
			method: http.MethodPost, path: "/api/admin/login",
			summary: "Admin login", description: "Authenticate with email and password. Sets admin_session cookie.",
			req:   AdminLoginRequest{},
			resps: []response{okResp(AdminMeResponse{}), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodPost, path: "/api/admin/logout",
			summary: "Admin logout", description: "Clears admin session and cookie.",
			resps: []response{{status: http.StatusOK}},
		},
		{
			method: http.MethodGet, path: "/api/admin/me",
			summary: "Current admin", description: "Returns the currently authenticated admin. Requires admin_session cookie.",
			resps: []response{okResp(AdminMeResponse{}), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodGet, path: "/api/admin/scenarios",
			summary: "List scenarios (admin)", description: "Returns all scenarios. Requires admin_session cookie.",
			resps: []response{okResp([]ScenarioSummary{}), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodPost, path: "/api/admin/scenarios",
			summary: "Upload scenario", description: "Uploads a scenario JSON document, as a multipart file field or as the raw body. Requires admin_session cookie.",
			req:   pcd.Scenario{},
			resps: []response{statusResp(http.StatusCreated, AdminScenarioResult{}), statusResp(http.StatusBadRequest, ValidationErrorResponse{}), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodGet, path: "/api/admin/scenarios/{id}",
			summary: "Get scenario", description: "Returns a scenario including its solution. Requires admin_session cookie.",
			req:   scenarioPath{},
			resps: []response{okResp(pcd.Scenario{}), errResp(http.StatusNotFound), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodDelete, path: "/api/admin/scenarios/{id}",
			summary: "Delete scenario", description: "Deletes a scenario. Requires admin_session cookie.",
			req:   scenarioPath{},
			resps: []response{okResp(AdminScenarioResult{}), errResp(http.StatusNotFound), errResp(http.StatusUnauthorized)},
		},
		{
			method: http.MethodGet, path: "/api/admin/results",
			summary: "List results", description: "Returns completion reports, newest first, optionally filtered by ?scenarioId=. Requires admin_session cookie.",
			req:   resultsQuery{},
			resps: []response{okResp([]GameResult{}), errResp(http.StatusUnauthorized)},
		},
	}

	for _, op := range ops {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		for _, resp := range op.resps {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.contentType != "" {
				opts = append(opts, openapi.WithContentType(resp.contentType))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
