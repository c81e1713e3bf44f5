package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/foundermafstat/mafcoach-gateway/internal/config"
	"github.com/foundermafstat/mafcoach-gateway/internal/credentials"
	"github.com/foundermafstat/mafcoach-gateway/internal/policy"
	"github.com/foundermafstat/mafcoach-gateway/internal/ratelimit"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
	"github.com/foundermafstat/mafcoach-gateway/internal/snapshot"
	"github.com/foundermafstat/mafcoach-gateway/internal/types"
)

const testAPIKey = "org-secret-fixture-value-123456"

type fixture struct {
	handler   http.Handler
	settings  settings.Store
	snapshots *snapshot.MemStore
}

// newFixture wires a full handler against the given remote URL, backed by
// in-memory stores. Stores may be shared across fixtures to simulate a
// restart or a remote outage against warm state.
func newFixture(remoteURL string, store settings.Store, snaps *snapshot.MemStore) *fixture {
	if store == nil {
		store = settings.NewMemStore()
	}
	if snaps == nil {
		snaps = snapshot.NewMemStore()
	}

	cfg := config.DefaultConfig()
	gate := policy.NewGate(
		func() bool { return false },
		func() string { return "" },
		func() time.Duration { return time.Second },
	)

	h := NewHandler(
		credentials.NewResolver(store),
		remote.NewAttempter(nil, remoteURL, "2025-03-25", nil),
		snapshot.NewCache(snaps, nil),
		store,
		gate,
		ratelimit.NewIngestionQuota(nil),
		func() *config.Config { return cfg },
		nil,
	)

	return &fixture{
		handler:   RequestID(h.Routes()),
		settings:  store,
		snapshots: snaps,
	}
}

func seedBundle(t *testing.T, store settings.Store) {
	t.Helper()
	_, err := store.Upsert(context.Background(), settings.UpsertParams{
		Name:           "default",
		APIKey:         testAPIKey,
		OrganizationID: "org-1",
		UserID:         "user-1",
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
}

func do(f *fixture, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// chatStrategyIndex classifies which chat-history strategy produced a request
// by inspecting its auth headers.
func chatStrategyIndex(r *http.Request) int {
	secret := r.Header.Get(remote.HeaderOrgSecret)
	version := r.Header.Get(remote.HeaderAPIVersion)
	user := r.Header.Get(remote.HeaderUserID)
	switch {
	case strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "):
		return 1
	case secret != "" && version != "" && user != "":
		return 3
	case secret != "" && version != "":
		return 2
	case secret != "":
		return 0
	}
	return -1
}

const historyBody = `{"history":[
	{"id":"h1","messages":[{"role":"user","content":"hello"}],"created_at":"2026-01-02T03:04:05Z"},
	{"id":"h2","messages":[{"role":"assistant","content":"hi"}],"created_at":"2026-01-02T03:05:05Z"}
]}`

func TestGetChatHistory_FirstStrategySucceeds(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chatStrategyIndex(r) >= 0 {
			w.Write([]byte(historyBody))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodGet, "/api/chat-history/r-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := gjson.Parse(rec.Body.String())
	if !body.Get("success").Bool() {
		t.Fatalf("expected success envelope: %s", rec.Body)
	}
	items := body.Get("items").Array()
	if len(items) != 2 || items[0].Get("id").String() != "h1" {
		t.Fatalf("unexpected items: %s", rec.Body)
	}

	// A fresh snapshot must be stored for the serving bundle.
	bundle, _ := f.settings.GetActive(context.Background())
	_, found, _ := f.snapshots.Load(context.Background(), bundle.ID, types.KindChatHistory)
	if !found {
		t.Error("expected a snapshot to be persisted after a live read")
	}
}

func TestChatHistoryDebug_ExposesFullAttemptTrace(t *testing.T) {
	// Remote accepts only the last chat-history strategy, so the debug
	// payload must show three rejections followed by the winner.
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chatStrategyIndex(r) == 3 {
			w.Write([]byte(historyBody))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodGet, "/api/chat-history/r-1/debug", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := gjson.Parse(rec.Body.String())
	attempts := body.Get("data.attempts").Array()
	if len(attempts) != 4 {
		t.Fatalf("expected 4 attempt records, got %d: %s", len(attempts), rec.Body)
	}
	wantStatuses := []int64{401, 401, 401, 200}
	for i, a := range attempts {
		if a.Get("status").Int() != wantStatuses[i] {
			t.Errorf("attempt %d status = %d, want %d", i, a.Get("status").Int(), wantStatuses[i])
		}
	}
	if got := attempts[3].Get("strategy").String(); got != "organization-secret-user-versioned" {
		t.Errorf("winner strategy = %q", got)
	}
	if body.Get("data.source").String() != "remote" {
		t.Errorf("source = %q, want remote", body.Get("data.source").String())
	}
	if len(body.Get("data.entries").Array()) != 2 {
		t.Errorf("expected 2 entries: %s", rec.Body)
	}
	if strings.Contains(rec.Body.String(), testAPIKey) {
		t.Error("API key leaked into debug payload")
	}
}

func TestGetChatHistory_ServesSnapshotWhenRemoteDown(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyBody))
	}))

	store := settings.NewMemStore()
	snaps := snapshot.NewMemStore()
	seedBundle(t, store)

	warm := newFixture(remoteSrv.URL, store, snaps)
	if rec := do(warm, http.MethodGet, "/api/chat-history/r-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("warm read failed: %d", rec.Code)
	}

	// Kill the remote; reads must degrade to the stored snapshot, not error.
	remoteSrv.Close()
	cold := newFixture(remoteSrv.URL, store, snaps)

	rec := do(cold, http.MethodGet, "/api/chat-history/r-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	items := gjson.Get(rec.Body.String(), "items").Array()
	if len(items) != 2 || items[0].Get("id").String() != "h1" {
		t.Fatalf("snapshot read lost records: %s", rec.Body)
	}
}

func TestGetReplicas_EmptyFallbackWhenNoSnapshot(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodGet, "/api/replicas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := gjson.Parse(rec.Body.String())
	if !body.Get("items").Exists() || !body.Get("items").IsArray() {
		t.Fatalf("expected an items array, got %s", rec.Body)
	}
	if len(body.Get("items").Array()) != 0 {
		t.Fatalf("expected empty items, got %s", rec.Body)
	}
}

func TestReads_NoActiveCredentials412(t *testing.T) {
	f := newFixture("http://127.0.0.1:0", nil, nil)

	rec := do(f, http.MethodGet, "/api/replicas", "")
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", rec.Code)
	}
	if gjson.Get(rec.Body.String(), "success").Bool() {
		t.Error("expected failure envelope")
	}
}

func TestGetChatHistory_MalformedRemote500(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodGet, "/api/chat-history/r-1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCreateReplica_ValidationBeforeRemote(t *testing.T) {
	remoteCalls := 0
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls++
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/replicas", `{"slug":"no-name"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if remoteCalls != 0 {
		t.Errorf("remote was called %d times before validation", remoteCalls)
	}
}

func TestCreateReplica_Success(t *testing.T) {
	var gotBody string
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"uuid":"rep-1","name":"Coach","slug":"coach"}`))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/replicas", `{"name":"Coach","slug":"coach","modelName":"gpt-4o"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gjson.Get(rec.Body.String(), "data.uuid").String() != "rep-1" {
		t.Fatalf("unexpected body: %s", rec.Body)
	}
	if gjson.Get(gotBody, "llm.model").String() != "gpt-4o" {
		t.Errorf("remote payload missing mapped model: %s", gotBody)
	}
}

func TestWriteFailure_SurfacesAllDiagnostics(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"secret ` + testAPIKey + ` rejected"}`))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/replicas", `{"name":"Coach"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want last attempted 401", rec.Code)
	}

	details := gjson.Get(rec.Body.String(), "details").Array()
	if len(details) != 3 {
		t.Fatalf("expected 3 attempt records for replica writes, got %d: %s", len(details), rec.Body)
	}
	if strings.Contains(rec.Body.String(), testAPIKey) {
		t.Error("API key leaked into failure diagnostics")
	}
}

func TestCreateTraining_Success(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(remote.HeaderUserID) == "" || r.Header.Get(remote.HeaderAPIVersion) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"t-1","replica_id":"r-1","type":"text","status":"PROCESSING"}`))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/training",
		`{"replicaId":"r-1","type":"text","rawText":"mafia roles overview","title":"Roles"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	data := gjson.Get(rec.Body.String(), "data")
	if data.Get("id").String() != "t-1" || data.Get("status").String() != "PROCESSING" {
		t.Fatalf("unexpected entry: %s", rec.Body)
	}
}

func TestCreateTraining_RejectsUnknownType(t *testing.T) {
	f := newFixture("http://127.0.0.1:0", nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/training", `{"replicaId":"r-1","type":"telepathy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateUploadURL_ForwardsSignedURL(t *testing.T) {
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filename") != "rules.pdf" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"signedURL":"https://storage.example/upload/abc","knowledgeBaseID":"kb-9"}`))
	}))
	defer remoteSrv.Close()

	f := newFixture(remoteSrv.URL, nil, nil)
	seedBundle(t, f.settings)

	rec := do(f, http.MethodPost, "/api/training/upload-url", `{"replicaId":"r-1","filename":"rules.pdf"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	data := gjson.Get(rec.Body.String(), "data")
	if data.Get("upload_url").String() != "https://storage.example/upload/abc" {
		t.Fatalf("unexpected upload url: %s", rec.Body)
	}
	if data.Get("entry_id").String() != "kb-9" {
		t.Fatalf("unexpected entry id: %s", rec.Body)
	}
}

func TestSettings_UpsertListDelete(t *testing.T) {
	f := newFixture("http://127.0.0.1:0", nil, nil)

	rec := do(f, http.MethodPost, "/api/settings",
		`{"name":"prod","apiKey":"`+testAPIKey+`","organizationId":"org-1","isActive":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), testAPIKey) {
		t.Error("full API key leaked in settings response")
	}
	if gjson.Get(rec.Body.String(), "data.key_preview").String() == "" {
		t.Error("expected a key preview in the settings view")
	}

	rec = do(f, http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items := gjson.Get(rec.Body.String(), "items").Array()
	if len(items) != 1 || items[0].Get("name").String() != "prod" {
		t.Fatalf("unexpected settings list: %s", rec.Body)
	}

	rec = do(f, http.MethodDelete, "/api/settings/prod", "")
	if rec.Code != http.StatusOK || !gjson.Get(rec.Body.String(), "data.removed").Bool() {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body)
	}

	rec = do(f, http.MethodDelete, "/api/settings/prod", "")
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "data.removed").Bool() {
		t.Fatalf("deleting a missing bundle should succeed with removed=false: %d %s", rec.Code, rec.Body)
	}
}

func TestSettings_UpsertRequiresNameAndKey(t *testing.T) {
	f := newFixture("http://127.0.0.1:0", nil, nil)

	if rec := do(f, http.MethodPost, "/api/settings", `{"apiKey":"k"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", rec.Code)
	}
	if rec := do(f, http.MethodPost, "/api/settings", `{"name":"n"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing apiKey: status = %d, want 400", rec.Code)
	}
}
