package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/services"
)

type stubAssetService struct {
	issueFunc func(ctx context.Context, cmd services.IssueUploadURLCommand) (services.SignedUpload, error)
}

func (s *stubAssetService) IssueUploadURL(ctx context.Context, cmd services.IssueUploadURLCommand) (services.SignedUpload, error) {
	if s.issueFunc != nil {
		return s.issueFunc(ctx, cmd)
	}
	return services.SignedUpload{}, nil
}

func newAssetRouter(assets services.AssetService) chi.Router {
	r := chi.NewRouter()
	NewAssetHandlers(assets).Routes(r)
	return r
}

func TestIssueUploadURL(t *testing.T) {
	var captured services.IssueUploadURLCommand
	assets := &stubAssetService{
		issueFunc: func(_ context.Context, cmd services.IssueUploadURLCommand) (services.SignedUpload, error) {
			captured = cmd
			return services.SignedUpload{
				UploadURL: "https://storage.googleapis.com/media/upload?sig=abc",
				PublicURL: "https://cdn.seva-flowers.ru/flowers/roses.jpg",
				ObjectKey: "flowers/roses.jpg",
				ExpiresAt: time.Date(2025, 5, 6, 12, 15, 0, 0, time.UTC),
			}, nil
		},
	}

	body := strings.NewReader(`{"file_name": " roses.jpg ", "content_type": "image/jpeg"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/uploads", body), "usr_admin")
	rec := httptest.NewRecorder()
	newAssetRouter(assets).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.FileName != "roses.jpg" || captured.ContentType != "image/jpeg" {
		t.Errorf("expected trimmed inputs, got %+v", captured)
	}
	if captured.ActorID != "usr_admin" {
		t.Errorf("unexpected actor %q", captured.ActorID)
	}

	var resp uploadURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ObjectKey != "flowers/roses.jpg" || resp.UploadURL == "" {
		t.Errorf("unexpected payload %+v", resp)
	}
	if resp.ExpiresAt != "2025-05-06T12:15:00Z" {
		t.Errorf("unexpected expiry %q", resp.ExpiresAt)
	}
}

func TestIssueUploadURLInvalidInput(t *testing.T) {
	assets := &stubAssetService{
		issueFunc: func(context.Context, services.IssueUploadURLCommand) (services.SignedUpload, error) {
			return services.SignedUpload{}, services.ErrAssetInvalidInput
		},
	}

	body := strings.NewReader(`{"file_name": "archive.zip", "content_type": "application/zip"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/uploads", body), "usr_admin")
	rec := httptest.NewRecorder()
	newAssetRouter(assets).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIssueUploadURLRequiresIdentity(t *testing.T) {
	body := strings.NewReader(`{"file_name": "roses.jpg", "content_type": "image/jpeg"}`)
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	rec := httptest.NewRecorder()
	newAssetRouter(&stubAssetService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
