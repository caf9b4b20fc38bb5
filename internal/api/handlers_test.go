package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quietqueue/jobqueue/internal/config"
	"github.com/quietqueue/jobqueue/internal/queuecore"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, *int64) {
	t.Helper()
	store, err := queuecore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := int64(1_700_000_000_000)
	now := func() int64 { return clock }

	engine := queuecore.NewEngine(store)
	inspector := queuecore.NewInspector(store)
	cfg := config.Gateway{Environment: "test", APIToken: testToken, MaxJobsPerTick: 10}
	return NewServer(engine, inspector, cfg, now), &clock
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("authorization", "Bearer "+testToken)
	return req
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("ok = %v, want true", body["ok"])
	}
	if body["requestId"] == "" {
		t.Error("expected a generated requestId")
	}
}

func TestJobsRoutesRequireBearerToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/stats", nil)
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestEnqueueThenGet(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	body := bytes.NewBufferString(`{"type":"crawl","target":"https://example.com"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/enqueue", body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body = %s", rr.Code, rr.Body.String())
	}

	var enqueueResp struct {
		OK  bool `json:"ok"`
		Job struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&enqueueResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !enqueueResp.OK || enqueueResp.Job.ID == "" {
		t.Fatalf("unexpected response: %+v", enqueueResp)
	}

	getReq := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/get?id="+enqueueResp.Job.ID, nil))
	getRR := httptest.NewRecorder()
	router.ServeHTTP(getRR, getReq)

	if getRR.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", getRR.Code)
	}
}

func TestEnqueueInvalidBody(t *testing.T) {
	s, _ := newTestServer(t)
	body := bytes.NewBufferString(`{"type":"bogus","target":"t"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/enqueue", body))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	s, _ := newTestServer(t)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/dequeue", nil))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string]any
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["job"] != nil {
		t.Errorf("job = %v, want nil", resp["job"])
	}
}

func TestFailUnknownJobReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	body := bytes.NewBufferString(`{"id":"missing","error":"boom"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/fail", body))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestWrongMethodReturns405(t *testing.T) {
	s, _ := newTestServer(t)
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/enqueue", nil))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestCompleteResultRoundTripsThroughGet(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	enqueueBody := bytes.NewBufferString(`{"type":"crawl","target":"https://example.com"}`)
	enqueueReq := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/enqueue", enqueueBody))
	enqueueRR := httptest.NewRecorder()
	router.ServeHTTP(enqueueRR, enqueueReq)

	var enqueueResp struct {
		Job struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	json.NewDecoder(enqueueRR.Body).Decode(&enqueueResp)
	id := enqueueResp.Job.ID

	dequeueReq := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/dequeue", nil))
	dequeueRR := httptest.NewRecorder()
	router.ServeHTTP(dequeueRR, dequeueReq)

	completeBody := bytes.NewBufferString(`{"id":"` + id + `","result":{"statusCode":200,"bytes":42}}`)
	completeReq := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs/complete", completeBody))
	completeRR := httptest.NewRecorder()
	router.ServeHTTP(completeRR, completeReq)
	if completeRR.Code != http.StatusOK {
		t.Fatalf("complete status = %d, want 200, body = %s", completeRR.Code, completeRR.Body.String())
	}

	getReq := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/get?id="+id, nil))
	getRR := httptest.NewRecorder()
	router.ServeHTTP(getRR, getReq)

	var getResp struct {
		Job struct {
			CreatedAtIso string         `json:"createdAtIso"`
			Result       map[string]any `json:"result"`
		} `json:"job"`
	}
	if err := json.NewDecoder(getRR.Body).Decode(&getResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if getResp.Job.CreatedAtIso == "" {
		t.Error("expected a non-empty createdAtIso")
	}
	if getResp.Job.Result["statusCode"] != float64(200) || getResp.Job.Result["bytes"] != float64(42) {
		t.Errorf("result = %+v, want the original completion payload deserialized", getResp.Job.Result)
	}
}

func TestConfigEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/config", nil))
	rr := httptest.NewRecorder()

	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string]any
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["environment"] != "test" {
		t.Errorf("environment = %v, want %q", resp["environment"], "test")
	}
}
