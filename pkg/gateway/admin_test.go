package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arclight-hq/relay/pkg/egress"
	"arclight-hq/relay/pkg/providers"
)

type fakeSyncEngine struct {
	syncs   int
	pulls   int
	syncErr error
	pullErr error
}

func (f *fakeSyncEngine) Sync(context.Context) error {
	f.syncs++
	return f.syncErr
}

func (f *fakeSyncEngine) Pull(context.Context) error {
	f.pulls++
	return f.pullErr
}

func newTestAdmin(engine *fakeSyncEngine) (*Admin, *Pipeline) {
	pipeline := NewPipeline(PipelineConfig{
		Registry: providers.NewRegistry(providers.RegistryConfig{CooldownWindow: time.Minute}),
		Egress:   egress.NewPool(egress.PoolConfig{}),
	})
	return NewAdmin(engine, pipeline, nil), pipeline
}

func TestAdminSync(t *testing.T) {
	engine := &fakeSyncEngine{}
	admin, _ := newTestAdmin(engine)

	rec := httptest.NewRecorder()
	admin.HandleSync(rec, httptest.NewRequest(http.MethodPost, "/auths", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if engine.syncs != 1 {
		t.Errorf("syncs = %d, want 1", engine.syncs)
	}
}

func TestAdminSyncFailure(t *testing.T) {
	engine := &fakeSyncEngine{syncErr: errors.New("store down")}
	admin, _ := newTestAdmin(engine)

	rec := httptest.NewRecorder()
	admin.HandleSync(rec, httptest.NewRequest(http.MethodPost, "/auths", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAdminPull(t *testing.T) {
	engine := &fakeSyncEngine{}
	admin, _ := newTestAdmin(engine)

	rec := httptest.NewRecorder()
	admin.HandlePull(rec, httptest.NewRequest(http.MethodPut, "/auths", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if engine.pulls != 1 {
		t.Errorf("pulls = %d, want 1", engine.pulls)
	}
}

func TestAdminShowChatToggles(t *testing.T) {
	admin, pipeline := newTestAdmin(&fakeSyncEngine{})

	rec := httptest.NewRecorder()
	admin.HandleShowChat(rec, httptest.NewRequest(http.MethodPost, "/show_chat", nil))

	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !body["show_chat"] || !pipeline.ShowChat() {
		t.Error("first toggle should enable chat body logging")
	}

	rec = httptest.NewRecorder()
	admin.HandleShowChat(rec, httptest.NewRequest(http.MethodPost, "/show_chat", nil))
	if pipeline.ShowChat() {
		t.Error("second toggle should disable chat body logging")
	}
}
