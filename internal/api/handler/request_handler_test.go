package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"tea_refill/internal/api/middleware"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository/memory"
	"tea_refill/internal/service"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, service.IST)

type recordingWS struct{ events []domain.RequestEvent }

func (r *recordingWS) BroadcastRequestEvent(e domain.RequestEvent) { r.events = append(r.events, e) }

type testEnv struct {
	store  *memory.Store
	ws     *recordingWS
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.SetClock(func() time.Time { return now })
	machine := domain.Machine{
		ID:                   "M1",
		GisLatitude:          "13.0827",
		GisLongitude:         "80.2707",
		KitchenIDs:           []string{"K1"},
		MachineType:          domain.MachineFullTime,
		EndTime:              "18:00",
		TeaFillStartQuantity: 5000,
		TeaFillEndQuantity:   2000,
		Status:               domain.Online,
	}
	store.PutMachine(machine)
	machine.ID, machine.EndTime = "M2", "10:30"
	store.PutMachine(machine)
	store.PutKitchen(domain.Kitchen{UserID: "K1", Name: "Anna Nagar Kitchen", Latitude: 13.0917, Longitude: 80.2707, Status: domain.Online})

	rs := service.NewRequestService(store, nil)
	rs.SetClock(func() time.Time { return now })
	ws := &recordingWS{}
	dispatcher := service.NewNotificationDispatcher(nil, nil, nil, nil, ws)

	reqH := NewRequestHandler(rs, dispatcher)
	kitchenH := NewKitchenHandler(service.NewKitchenService(store))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "ADMIN1")
		c.Set(middleware.UserRoleKey, string(domain.RoleAdmin))
	})
	r.POST("/machines/canister-level", reqH.CheckCanisterLevel)
	r.GET("/machines/:machineId/requests", reqH.ListMachineRequests)
	r.GET("/requests", reqH.FindRequests)
	r.GET("/requests/:requestId", reqH.GetRequest)
	r.GET("/requests/:requestId/status-updates", reqH.ListStatusUpdates)
	r.POST("/requests/decline", reqH.DeclineAndReassign)
	r.POST("/requests/transitions/:mutation", reqH.Transition)
	r.GET("/kitchens/:userId/pending", reqH.ListPendingForKitchen)
	r.POST("/kitchens/:userId/members", kitchenH.AddMember)
	r.POST("/kitchens/:userId/canisters", kitchenH.RegisterCanister)

	return &testEnv{store: store, ws: ws, router: r}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func transitionBody(userID, requestID string, proceed bool, reason string) map[string]any {
	return map[string]any{
		"userId":        userID,
		"requestId":     requestID,
		"latitude":      13.09,
		"longitude":     80.27,
		"status":        "update",
		"dateAndTime":   "16/10/2026, 10:05:00 am",
		"isProceedNext": proceed,
		"reason":        reason,
	}
}

func TestCheckCanisterLevelResponseCodes(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   int
	}{
		{"creates request", map[string]any{"machineId": "M1", "canisterLevel": 10}, http.StatusOK, CodeOK},
		{"above threshold", map[string]any{"machineId": "M1", "canisterLevel": 60}, http.StatusOK, CodeOK},
		{"inside closing hour", map[string]any{"machineId": "M2", "canisterLevel": 10}, http.StatusOK, CodeRejected},
		{"unknown machine", map[string]any{"machineId": "M404", "canisterLevel": 10}, http.StatusBadRequest, CodeBadInput},
		{"level out of range", map[string]any{"machineId": "M1", "canisterLevel": 101}, http.StatusBadRequest, CodeBadInput},
		{"missing level", map[string]any{"machineId": "M1"}, http.StatusBadRequest, CodeBadInput},
		{"malformed json", `{"machineId":`, http.StatusBadRequest, CodeBadInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			status, resp := env.do(t, http.MethodPost, "/machines/canister-level", tt.body)
			if status != tt.wantStatus || resp.Code != tt.wantCode {
				t.Errorf("got %d/code %d (%s), want %d/code %d", status, resp.Code, resp.Message, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestCheckCanisterLevelDispatchesOutbox(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/machines/canister-level", map[string]any{"machineId": "M1", "canisterLevel": 5})

	var result domain.CanisterCheckResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.RequestID != "REQ-0001" {
		t.Errorf("requestId = %q, want REQ-0001", result.RequestID)
	}
	got := map[string]domain.Role{}
	for _, e := range env.ws.events {
		got[e.RecipientUserID] = e.Role
	}
	if got["K1"] != domain.RoleKitchen || got["M1"] != domain.RoleMachine || len(got) != 2 {
		t.Errorf("broadcast recipients = %v", got)
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailOn("requests.create", errors.New("disk full"))
	status, resp := env.do(t, http.MethodPost, "/machines/canister-level", map[string]any{"machineId": "M1", "canisterLevel": 5})
	if status != http.StatusInternalServerError || resp.Code != CodeInternal {
		t.Errorf("got %d/code %d, want 500/code 500", status, resp.Code)
	}
	if len(env.ws.events) != 0 {
		t.Errorf("nothing should be dispatched after a failed write, got %d events", len(env.ws.events))
	}
}

func TestTransitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/machines/canister-level", map[string]any{"machineId": "M1", "canisterLevel": 5})

	tests := []struct {
		name       string
		mutation   string
		body       map[string]any
		wantStatus int
		wantCode   int
	}{
		{"unknown mutation", "teleport", transitionBody("K1", "REQ-0001", true, ""), http.StatusBadRequest, CodeBadInput},
		{"not offered", "kitchen-response", transitionBody("K9", "REQ-0001", true, ""), http.StatusBadRequest, CodeBadInput},
		{"decline without reason", "order-ready", transitionBody("K1", "REQ-0001", false, ""), http.StatusBadRequest, CodeBadInput},
		{"wrong status", "picked-up", transitionBody("A1", "REQ-0001", true, ""), http.StatusBadRequest, CodeBadInput},
		{"missing request", "kitchen-response", transitionBody("K1", "REQ-9999", true, ""), http.StatusBadRequest, CodeBadInput},
		{"kitchen accepts", "kitchen-response", transitionBody("K1", "REQ-0001", true, ""), http.StatusOK, CodeOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := env.do(t, http.MethodPost, "/requests/transitions/"+tt.mutation, tt.body)
			if status != tt.wantStatus || resp.Code != tt.wantCode {
				t.Errorf("got %d/code %d (%s), want %d/code %d", status, resp.Code, resp.Message, tt.wantStatus, tt.wantCode)
			}
		})
	}

	_, resp := env.do(t, http.MethodGet, "/requests/REQ-0001", nil)
	var req struct {
		RequestStatus string `json:"requestStatus"`
		KitchenUserID any    `json:"kitchenUserId"`
	}
	if err := json.Unmarshal(resp.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.RequestStatus != string(domain.StatusAccepted) || req.KitchenUserID != "K1" {
		t.Errorf("request after accept = %+v", req)
	}
}

func TestDeclineEndpointWithoutAlternatives(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/machines/canister-level", map[string]any{"machineId": "M1", "canisterLevel": 5})
	env.ws.events = nil

	status, resp := env.do(t, http.MethodPost, "/requests/decline", map[string]any{
		"userId": "K1", "requestId": "REQ-0001", "status": "declined", "reason": "out of milk",
	})
	if status != http.StatusOK || resp.Code != CodeRejected {
		t.Fatalf("got %d/code %d (%s), want 200/code 300", status, resp.Code, resp.Message)
	}
	if len(env.ws.events) != 1 || env.ws.events[0].RecipientUserID != "M1" {
		t.Errorf("events = %+v, want one machine notification", env.ws.events)
	}

	_, resp = env.do(t, http.MethodGet, "/requests/REQ-0001/status-updates", nil)
	var updates []domain.StatusUpdate
	if err := json.Unmarshal(resp.Data, &updates); err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 || updates[0].Status != domain.StatusDeclined {
		t.Errorf("updates = %+v", updates)
	}

	status, resp = env.do(t, http.MethodPost, "/requests/decline", map[string]any{
		"userId": "K1", "requestId": "REQ-0001", "status": "rejected",
	})
	if status != http.StatusBadRequest || resp.Code != CodeBadInput {
		t.Errorf("wrong status literal: got %d/code %d", status, resp.Code)
	}
}

func TestQueryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/machines/canister-level", map[string]any{"machineId": "M1", "canisterLevel": 5})

	tests := []struct {
		path       string
		wantStatus int
		wantLen    int
	}{
		{"/machines/M1/requests", http.StatusOK, 1},
		{"/machines/M2/requests", http.StatusOK, 0},
		{"/kitchens/K1/pending", http.StatusOK, 1},
		{"/kitchens/K2/pending", http.StatusOK, 0},
		{"/requests?machineId=M1&status=Pending", http.StatusOK, 1},
		{"/requests?status=Completed", http.StatusOK, 0},
		{"/machines/M404/requests", http.StatusBadRequest, -1},
		{"/requests/REQ-4040", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, resp := env.do(t, http.MethodGet, tt.path, nil)
			if status != tt.wantStatus {
				t.Fatalf("status = %d (%s), want %d", status, resp.Message, tt.wantStatus)
			}
			if tt.wantLen < 0 {
				return
			}
			var list []json.RawMessage
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				t.Fatal(err)
			}
			if len(list) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(list), tt.wantLen)
			}
		})
	}
}

func TestKitchenEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kitchens/K1/canisters", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register canister status = %d: %s", rec.Code, rec.Body.String())
	}

	status, resp := env.do(t, http.MethodPost, "/kitchens/K1/members", map[string]any{"name": "Meena"})
	if status != http.StatusCreated {
		t.Fatalf("add member status = %d (%s)", status, resp.Message)
	}
	var member domain.KitchenMember
	if err := json.Unmarshal(resp.Data, &member); err != nil {
		t.Fatal(err)
	}
	if member.UID != "USER001" {
		t.Errorf("uid = %s, want USER001", member.UID)
	}

	if status, _ := env.do(t, http.MethodPost, "/kitchens/K404/members", map[string]any{"name": "Meena"}); status != http.StatusBadRequest {
		t.Errorf("unknown kitchen status = %d, want 400", status)
	}
}
