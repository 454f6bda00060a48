package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/dayroster/internal/config"
	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/reconcile"
)

type fakeService struct {
	gotOpts  core.SyncOptions
	gotFile  []byte
	gotIP    string
	syncErr  error
	runs     []core.SyncRun
	listErr  error
	gotPage  int
	gotLimit int
	mappings map[string]core.RoomMapping
	mapErr   error
}

func newFakeService() *fakeService {
	return &fakeService{mappings: map[string]core.RoomMapping{}}
}

func (f *fakeService) RunSync(ctx context.Context, r io.Reader, opts core.SyncOptions) (*core.SyncResult, error) {
	f.gotOpts = opts
	f.gotFile, _ = io.ReadAll(r)
	f.gotIP = core.IPAddressFromContext(ctx)

	res := &core.SyncResult{
		Success:        true,
		Summary:        reconcile.Summary{TotalInSource: 1, TotalProcessed: 1, Inserted: 1},
		Changes:        []reconcile.Change{{ExternalID: "P1", Name: "Kim", Action: reconcile.KindInsert}},
		SkippedReasons: []reconcile.Skip{},
	}
	if !opts.DryRun {
		res.SyncID = "run-1"
	}
	if f.syncErr != nil {
		res.Success = false
		res.ErrorMessage = f.syncErr.Error()
		return res, f.syncErr
	}
	return res, nil
}

func (f *fakeService) ListRuns(_ context.Context, page, limit int) (*core.RunPage, error) {
	f.gotPage, f.gotLimit = page, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &core.RunPage{Runs: f.runs, Total: len(f.runs), Page: page, Limit: limit, TotalPages: 1}, nil
}

func (f *fakeService) GetRun(_ context.Context, id string) (*core.SyncRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, core.ErrRunNotFound
}

func (f *fakeService) ListRoomMappings(context.Context) ([]core.RoomMapping, error) {
	out := []core.RoomMapping{}
	for _, m := range f.mappings {
		out = append(out, m)
	}
	return out, f.mapErr
}

func (f *fakeService) GetRoomMapping(_ context.Context, prefix string) (core.RoomMapping, error) {
	m, ok := f.mappings[prefix]
	if !ok {
		return core.RoomMapping{}, core.ErrMappingNotFound
	}
	return m, nil
}

func (f *fakeService) CreateRoomMapping(_ context.Context, in core.RoomMappingInput) (core.RoomMapping, error) {
	if f.mapErr != nil {
		return core.RoomMapping{}, f.mapErr
	}
	m := core.RoomMapping{RoomPrefix: in.RoomPrefix, CoordinatorID: in.CoordinatorID, IsActive: true}
	f.mappings[in.RoomPrefix] = m
	return m, nil
}

func (f *fakeService) UpdateRoomMapping(_ context.Context, prefix string, in core.RoomMappingInput) error {
	if _, ok := f.mappings[prefix]; !ok {
		return core.ErrMappingNotFound
	}
	f.mappings[prefix] = core.RoomMapping{RoomPrefix: prefix, CoordinatorID: in.CoordinatorID, IsActive: in.IsActive == nil || *in.IsActive}
	return nil
}

func (f *fakeService) DeleteRoomMapping(_ context.Context, prefix string) error {
	if _, ok := f.mappings[prefix]; !ok {
		return core.ErrMappingNotFound
	}
	delete(f.mappings, prefix)
	return nil
}

func (f *fakeService) SyncStatus() core.RunLimiterStatus {
	return core.RunLimiterStatus{Available: 1, MaxConcurrent: 1}
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{MaxFileSize: 1 << 20},
		Rate: config.RateLimitConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, svc SyncService, cfg *config.Config, ping Pinger) *Server {
	t.Helper()
	s := NewServer(svc, cfg, ping)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func syncRequest(t *testing.T, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "roster.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sync", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.5:41000"
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestHandleSync(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig(), nil)

	rec := serve(s, syncRequest(t, map[string]string{"dryRun": "false", "triggeredBy": " nurse.kim "}, []byte("xlsx-bytes")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["syncId"] != "run-1" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["code"]; ok {
		t.Error("successful response should carry no code")
	}

	if svc.gotOpts.Source != core.SourceManual || svc.gotOpts.TriggeredBy != "nurse.kim" || svc.gotOpts.DryRun {
		t.Errorf("opts = %+v", svc.gotOpts)
	}
	if string(svc.gotFile) != "xlsx-bytes" {
		t.Errorf("file = %q", svc.gotFile)
	}
	if svc.gotIP != "203.0.113.5" {
		t.Errorf("ip = %q, want 203.0.113.5", svc.gotIP)
	}
}

func TestHandleSync_DryRun(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig(), nil)

	rec := serve(s, syncRequest(t, map[string]string{"dryRun": "true", "triggeredBy": "kim"}, []byte("x")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !svc.gotOpts.DryRun {
		t.Error("dryRun not passed through")
	}
	if body := decode(t, rec); body["syncId"] != "" {
		t.Errorf("dry run syncId = %v, want empty", body["syncId"])
	}
}

func TestHandleSync_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		file     []byte
		syncErr  error
		want     int
		wantCode string
	}{
		{"no file", map[string]string{"triggeredBy": "kim"}, nil, nil, http.StatusBadRequest, "FILE002"},
		{"bad dryRun", map[string]string{"dryRun": "maybe"}, []byte("x"), nil, http.StatusBadRequest, "ERR000"},
		{"lock held", map[string]string{"triggeredBy": "kim"}, []byte("x"), core.ErrSyncInProgress, http.StatusConflict, "SYNC001"},
		{"too large", map[string]string{"triggeredBy": "kim"}, []byte("x"), core.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE001"},
		{"not a workbook", map[string]string{"triggeredBy": "kim"}, []byte("x"), errors.New("parse roster: open workbook: zip: not a valid zip file"), http.StatusBadRequest, "FILE003"},
		{"apply failure", map[string]string{"triggeredBy": "kim"}, []byte("x"), errors.New("apply insert P1: connection refused"), http.StatusInternalServerError, "DB004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.syncErr = tt.syncErr
			s := newTestServer(t, svc, testConfig(), nil)

			rec := serve(s, syncRequest(t, tt.fields, tt.file))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := decode(t, rec)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestHandleSync_FailedRunKeepsResult(t *testing.T) {
	svc := newFakeService()
	svc.syncErr = errors.New("apply insert P1: connection refused")
	s := newTestServer(t, svc, testConfig(), nil)

	body := decode(t, serve(s, syncRequest(t, map[string]string{"triggeredBy": "kim"}, []byte("x"))))

	if body["success"] != false || body["syncId"] != "run-1" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(body["errorMessage"].(string), "connection refused") {
		t.Errorf("errorMessage = %v", body["errorMessage"])
	}
}

func TestHandleSync_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, SyncLimit: 1}
	s := newTestServer(t, newFakeService(), cfg, nil)

	fields := map[string]string{"triggeredBy": "kim"}
	if rec := serve(s, syncRequest(t, fields, []byte("x"))); rec.Code != http.StatusOK {
		t.Fatalf("first sync status = %d", rec.Code)
	}
	rec := serve(s, syncRequest(t, fields, []byte("x")))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second sync status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestHandleRuns(t *testing.T) {
	svc := newFakeService()
	svc.runs = []core.SyncRun{{ID: "run-7", Status: core.RunCompleted, StartedAt: time.Now()}}
	s := newTestServer(t, svc, testConfig(), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/sync/runs?page=3&limit=-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if svc.gotPage != 3 || svc.gotLimit != core.DefaultRunPageSize {
		t.Errorf("page/limit = %d/%d, want 3/%d", svc.gotPage, svc.gotLimit, core.DefaultRunPageSize)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sync/runs/run-7", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["id"] != "run-7" {
		t.Errorf("get status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sync/runs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
	if decode(t, rec)["code"] != "SYNC003" {
		t.Errorf("missing run code = %v", decode(t, rec)["code"])
	}
}

func TestHandleRoomMappings(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(t, svc, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/settings/room-mapping", strings.NewReader(`{"roomPrefix":"31","coordinatorId":"c1"}`))
	rec := serve(s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/api/settings/room-mapping/31", strings.NewReader(`{"isActive":false}`))
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("update status = %d", rec.Code)
	}
	if svc.mappings["31"].IsActive {
		t.Error("mapping should be inactive after update")
	}

	req = httptest.NewRequest(http.MethodPut, "/api/settings/room-mapping/99", strings.NewReader(`{}`))
	if rec := serve(s, req); rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/settings/room-mapping", strings.NewReader(`{"room":"31"}`))
	if rec := serve(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/settings/room-mapping/31", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["roomPrefix"] != "31" {
		t.Errorf("get = %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/settings/room-mapping/99", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/settings/room-mapping/31", nil)); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/settings/room-mapping", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRoomMappings_ValidationError(t *testing.T) {
	svc := newFakeService()
	svc.mapErr = &core.ValidationError{What: "room mapping", Fields: []string{"RoomPrefix must be numeric"}}
	s := newTestServer(t, svc, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/settings/room-mapping", strings.NewReader(`{"roomPrefix":"A1"}`))
	rec := serve(s, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if decode(t, rec)["code"] != "MAP004" {
		t.Errorf("code = %v", decode(t, rec)["code"])
	}
}

func TestSyncPage(t *testing.T) {
	svc := newFakeService()
	svc.runs = []core.SyncRun{{ID: "run-9", Status: core.RunCompleted, Source: core.SourceScheduled, TriggeredBy: "scheduler"}}
	s := newTestServer(t, svc, testConfig(), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "run-9") || !strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("page body = %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/sync", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	if strings.Contains(rec.Body.String(), "<html") {
		t.Error("HTMX request should get the table fragment only")
	}
}

func TestSyncPage_HTMXError(t *testing.T) {
	svc := newFakeService()
	svc.listErr = errors.New("list sync runs: dial tcp: connection refused")
	s := newTestServer(t, svc, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/sync", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `role="alert"`) || !strings.Contains(rec.Body.String(), "DB004") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeService(), testConfig(), func(context.Context) error { return nil })
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("healthy = %d %s", rec.Code, rec.Body.String())
	}

	s = newTestServer(t, newFakeService(), testConfig(), func(context.Context) error { return errors.New("down") })
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec)["status"] != "degraded" {
		t.Errorf("degraded = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}
	s := newTestServer(t, newFakeService(), cfg, nil)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/sync/runs", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sync/runs", nil)
	req.Header.Set("X-API-Key", "k1")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz should not require a key, got %d", rec.Code)
	}
}

func TestSyncPage_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}
	svc := newFakeService()
	svc.runs = []core.SyncRun{{ID: "run-3", Status: core.RunFailed, TriggeredBy: "alice", ErrorMessage: "insert P00123: connection reset"}}
	s := newTestServer(t, svc, cfg, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/sync", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "P00123") {
		t.Error("unauthenticated response exposes run history")
	}

	req := httptest.NewRequest(http.MethodGet, "/sync", nil)
	req.Header.Set("X-API-Key", "k1")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSyncInProgress, http.StatusConflict},
		{core.ErrMappingExists, http.StatusConflict},
		{core.ErrRunNotFound, http.StatusNotFound},
		{core.ErrCoordinatorNotFound, http.StatusUnprocessableEntity},
		{core.ErrSyncCancelled, http.StatusServiceUnavailable},
		{errors.New("invalid sync options: TriggeredBy required"), http.StatusBadRequest},
		{errors.New("insert P1: external id already registered"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
