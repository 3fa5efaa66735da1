package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiloghttp "seabridge/ms_odex_gateway/internal/adapters/http/apilog"
	authhttp "seabridge/ms_odex_gateway/internal/adapters/http/auth"
	form13http "seabridge/ms_odex_gateway/internal/adapters/http/form13"
	healthhttp "seabridge/ms_odex_gateway/internal/adapters/http/health"
	vgmhttp "seabridge/ms_odex_gateway/internal/adapters/http/vgm"
	"seabridge/ms_odex_gateway/internal/application/gateway"
	"seabridge/ms_odex_gateway/internal/core/apilog"
	"seabridge/ms_odex_gateway/internal/core/carrier"
	"seabridge/ms_odex_gateway/internal/infrastructure/config"
	"seabridge/ms_odex_gateway/internal/testutil"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		App: config.AppSettings{Name: "ms_odex_gateway", Version: "test", Environment: "test"},
		HTTP: config.HTTPSettings{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ForwardTimeout:  45 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Gateway: config.GatewaySettings{DefaultPageSize: 20, MaxPageSize: 100},
		Odex:    config.OdexSettings{BaseURL: "https://odex.example"},
	}
}

func newTestServer(t *testing.T, store *testutil.MemStore, fwd *testutil.MockForwarder) *Server {
	t.Helper()
	log := testutil.NewNullLogger()
	cfg := testConfig()

	svc := gateway.NewService(store, fwd, log, nil, gateway.Config{
		DefaultPageSize: cfg.Gateway.DefaultPageSize,
		MaxPageSize:     cfg.Gateway.MaxPageSize,
	})

	srv, err := New(Options{
		Config: cfg,
		Logger: log,
		Handlers: Handlers{
			Vgm:     vgmhttp.NewHandler(svc, cfg.Odex.BaseURL, log),
			Form13:  form13http.NewHandler(svc, cfg.Odex.BaseURL, log),
			Auth:    authhttp.NewHandler(svc, cfg.Odex.BaseURL, log),
			ApiLogs: apiloghttp.NewHandler(svc, log),
			Health:  healthhttp.NewHandler(healthhttp.Metadata{Service: "ms_odex_gateway"}, nil),
		},
	})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rr.Body.String())
	}
	return out
}

func TestServer_New_NilLogger(t *testing.T) {
	_, err := New(Options{Config: testConfig(), Logger: nil})
	if err == nil || err.Error() != "logger is required" {
		t.Fatalf("expected 'logger is required', got %v", err)
	}
}

func TestServer_New_MissingHandlers(t *testing.T) {
	_, err := New(Options{Config: testConfig(), Logger: testutil.NewNullLogger()})
	if err == nil {
		t.Fatal("expected error for missing handlers")
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, testutil.NewMemStore(), &testutil.MockForwarder{})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse(t, rr)
	if body["status"] != "UP" {
		t.Errorf("expected status UP, got %v", body["status"])
	}
}

func TestServer_VgmSubmitFlow(t *testing.T) {
	store := testutil.NewMemStore()
	fwd := &testutil.MockForwarder{
		ForwardFunc: func(ctx context.Context, req carrier.Request) carrier.Result {
			return carrier.Result{StatusCode: 200, Data: map[string]any{"cntnrStatus": "Verified"}}
		},
	}
	srv := newTestServer(t, store, fwd)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{
		"cntnrNo": "MSKU1234567",
		"bookNo":  "BK9000",
		"totWt":   "20000",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeResponse(t, rr)
	if body["success"] != true {
		t.Errorf("expected success outcome, got %v", body)
	}
	logID, _ := body["logId"].(string)
	if logID == "" {
		t.Fatal("expected a logId in the response")
	}

	// The carrier call must have hit the configured ODeX endpoint.
	calls := fwd.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 carrier call, got %d", len(calls))
	}
	if calls[0].URL != "https://odex.example/saveVgmWb" {
		t.Errorf("unexpected carrier URL %q", calls[0].URL)
	}

	// The record is retrievable through the log surface.
	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/logs/"+logID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rec := decodeResponse(t, rr)
	if rec["status"] != "success" {
		t.Errorf("expected stored status success, got %v", rec["status"])
	}
	if rec["moduleName"] != "VGM_SUBMISSION" {
		t.Errorf("expected VGM_SUBMISSION, got %v", rec["moduleName"])
	}
}

func TestServer_VgmSubmit_MissingContainer(t *testing.T) {
	srv := newTestServer(t, testutil.NewMemStore(), &testutil.MockForwarder{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{"totWt": "20000"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestServer_VgmResubmitFlow(t *testing.T) {
	store := testutil.NewMemStore()
	fwd := &testutil.MockForwarder{}
	srv := newTestServer(t, store, fwd)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{"cntnrNo": "MSKU1234567"})
	logID, _ := decodeResponse(t, rr)["logId"].(string)

	rr = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm/"+logID+"/resubmit", map[string]any{
		"body": map[string]any{"totWt": "21000"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeResponse(t, rr)
	if body["vgmId"] != logID {
		t.Errorf("expected same record identity, got %v", body["vgmId"])
	}

	rec, err := store.GetByID(context.Background(), logID)
	if err != nil {
		t.Fatalf("failed to fetch record: %v", err)
	}
	if rec.RetryCount != 1 {
		t.Errorf("expected retryCount 1, got %d", rec.RetryCount)
	}
	if rec.Request.Body["totWt"] != "21000" {
		t.Error("expected patched weight stored in place")
	}
}

func TestServer_VgmResubmit_UnknownLog(t *testing.T) {
	srv := newTestServer(t, testutil.NewMemStore(), &testutil.MockForwarder{})

	rr := doJSON(t, srv.Handler(), http.MethodPost,
		"/api/v1/vgm/b3c54f7e-0000-4000-8000-000000000000/resubmit", map[string]any{})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestServer_Form13Submit(t *testing.T) {
	store := testutil.NewMemStore()
	fwd := &testutil.MockForwarder{}
	srv := newTestServer(t, store, fwd)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/form13", map[string]any{"bookNo": "BK123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if calls := fwd.Calls(); len(calls) != 1 || calls[0].URL != "https://odex.example/saveForm13" {
		t.Errorf("unexpected carrier calls: %+v", calls)
	}
}

func TestServer_AuthLogin_FailedCredentialsStillLogged(t *testing.T) {
	store := testutil.NewMemStore()
	fwd := &testutil.MockForwarder{
		ForwardFunc: func(ctx context.Context, req carrier.Request) carrier.Result {
			return carrier.Result{
				StatusCode: 401,
				Data:       map[string]any{"message": "invalid credentials"},
				Headers:    map[string]string{"Content-Type": "application/json"},
				Failed:     true,
				ErrorMsg:   "invalid credentials",
			}
		},
	}
	srv := newTestServer(t, store, fwd)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/auth/login", map[string]any{"userId": "x", "password": "y"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with soft failure, got %d", rr.Code)
	}
	body := decodeResponse(t, rr)
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body)
	}

	records, total, err := store.List(context.Background(), apilog.ListFilter{ModuleName: apilog.ModuleAuthorization}, 1, 10)
	if err != nil || total != 1 {
		t.Fatalf("expected one AUTHORIZATION record, got %d (%v)", total, err)
	}
	if records[0].Status != apilog.StatusFailed {
		t.Errorf("expected failed record, got %q", records[0].Status)
	}
}

func TestServer_EditCreatesLineage(t *testing.T) {
	store := testutil.NewMemStore()
	srv := newTestServer(t, store, &testutil.MockForwarder{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{"cntnrNo": "MSKU1234567"})
	logID, _ := decodeResponse(t, rr)["logId"].(string)

	rr = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/logs/"+logID+"/edit", map[string]any{
		"body": map[string]any{"cscPlateMaxWtLimit": "25000"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeResponse(t, rr)
	if body["originalLogId"] != logID {
		t.Errorf("expected lineage to %q, got %v", logID, body["originalLogId"])
	}
	if body["newLogId"] == logID || body["newLogId"] == "" {
		t.Errorf("expected a distinct new log id, got %v", body["newLogId"])
	}
}

func TestServer_ListWithFilters(t *testing.T) {
	store := testutil.NewMemStore()
	srv := newTestServer(t, store, &testutil.MockForwarder{})

	for i, book := range []string{"BK001-A", "bk001x", "OTHER99"} {
		doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{
			"cntnrNo": fmt.Sprintf("MSKU%07d", i),
			"bookNo":  book,
		})
	}

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/logs?bookingNo=BK001", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse(t, rr)
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total"] != float64(2) {
		t.Errorf("expected 2 matches, got %v", pagination["total"])
	}

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/logs?module=NOT_A_MODULE", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown module, got %d", rr.Code)
	}

	rr = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/logs?dateFrom=not-a-date", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}
}

func TestServer_Stats(t *testing.T) {
	store := testutil.NewMemStore()
	srv := newTestServer(t, store, &testutil.MockForwarder{})

	doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/vgm", map[string]any{"cntnrNo": "MSKU1234567"})

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/logs/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse(t, rr)
	modules, _ := body["modules"].(map[string]any)
	if modules["VGM_SUBMISSION"] != float64(1) {
		t.Errorf("expected 1 VGM submission, got %v", modules["VGM_SUBMISSION"])
	}
}

func TestServer_RunShutdown(t *testing.T) {
	srv := newTestServer(t, testutil.NewMemStore(), &testutil.MockForwarder{})
	srv.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
