package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	controller "github.com/m-mizutani/slipway/pkg/controller/http"
	"github.com/m-mizutani/slipway/pkg/domain/model"
)

// mockWebhookUseCase records processed events
type mockWebhookUseCase struct {
	events []*model.WebhookEvent
	err    error
}

func (m *mockWebhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	m.events = append(m.events, event)
	return m.err
}

const testSecret = "test-secret"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func releasePayload() []byte {
	return []byte(`{
		"action": "published",
		"release": {
			"id": 42,
			"tag_name": "v1.2.0",
			"target_commitish": "abc123"
		},
		"repository": {
			"name": "dotter",
			"full_name": "SuperCuber/dotter",
			"owner": {"login": "SuperCuber"}
		},
		"sender": {"login": "SuperCuber"}
	}`)
}

func postWebhook(handler *controller.WebhookHandler, eventType string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}

	w := httptest.NewRecorder()
	handler.Handle(w, req)
	return w
}

func TestWebhookHandler_ReleasePublished(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	body := releasePayload()
	w := postWebhook(handler, "release", body, sign(body))

	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, len(uc.events), 1)

	event := uc.events[0]
	gt.Equal(t, event.Type, model.EventTypeRelease)
	gt.Equal(t, event.Action, "published")
	gt.Equal(t, event.Repository, "SuperCuber/dotter")
	gt.True(t, event.IsSupportedEvent())

	gt.NotNil(t, event.Release)
	gt.Equal(t, event.Release.Owner, "SuperCuber")
	gt.Equal(t, event.Release.Repo, "dotter")
	gt.Equal(t, event.Release.ReleaseID, int64(42))
	gt.Equal(t, event.Release.TagName, "v1.2.0")
	gt.Equal(t, event.Release.CommitSHA, "abc123")
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	w := postWebhook(handler, "release", releasePayload(), "sha256=deadbeef")

	gt.Equal(t, w.Code, http.StatusUnauthorized)
	gt.Equal(t, len(uc.events), 0)
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	w := postWebhook(handler, "release", releasePayload(), "")

	gt.Equal(t, w.Code, http.StatusUnauthorized)
	gt.Equal(t, len(uc.events), 0)
}

func TestWebhookHandler_UnsupportedEventType(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	body := []byte(`{"zen": "Keep it logically awesome."}`)
	w := postWebhook(handler, "ping", body, sign(body))

	// Unknown events are acknowledged but carry no release
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, len(uc.events), 1)
	gt.Equal(t, uc.events[0].Type, model.EventTypeUnknown)
	gt.True(t, !uc.events[0].IsSupportedEvent())
}

func TestWebhookHandler_ReleaseDeletedNotSupported(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	body := bytes.Replace(releasePayload(), []byte(`"published"`), []byte(`"deleted"`), 1)
	w := postWebhook(handler, "release", body, sign(body))

	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, len(uc.events), 1)
	gt.True(t, !uc.events[0].IsSupportedEvent())
}

func TestWebhookHandler_IncompleteReleasePayload(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)

	// No release ID, so there is no upload handle to attach assets to
	body := []byte(`{
		"action": "published",
		"release": {"tag_name": "v1.2.0"},
		"repository": {"name": "dotter", "owner": {"login": "SuperCuber"}}
	}`)
	w := postWebhook(handler, "release", body, sign(body))

	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, len(uc.events), 1)
	gt.True(t, uc.events[0].Release == nil)
	gt.True(t, !uc.events[0].IsSupportedEvent())
}
