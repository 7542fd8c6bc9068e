package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddot-watch/feedapi/internal/models"
)

type fakeRepo struct {
	mu     sync.Mutex
	items  []models.FeedItem
	nextID int64
	err    error
}

func (f *fakeRepo) Insert(_ context.Context, caption, key string) (models.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.FeedItem{}, f.err
	}
	f.nextID++
	now := time.Now().UTC()
	item := models.FeedItem{ID: f.nextID, Caption: caption, URL: key, CreatedAt: now, UpdatedAt: now}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id int64) (*models.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, item := range f.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindAllDesc(_ context.Context) ([]models.FeedItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	out := make([]models.FeedItem, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0; i-- {
		out = append(out, f.items[i])
	}
	return out, len(f.items), nil
}

func (f *fakeRepo) stored(t *testing.T, id int64) models.FeedItem {
	t.Helper()
	item, err := f.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return *item
}

type fakeSigner struct {
	err error
}

const signedPrefix = "https://media.example/signed/"

func (f *fakeSigner) SignGet(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return signedPrefix + "get/" + key + "?X-Amz-Signature=abc", nil
}

func (f *fakeSigner) SignPut(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return signedPrefix + "put/" + key + "?X-Amz-Signature=def", nil
}

// passAuth lets every request through; auth is covered in the auth package.
func passAuth(next http.Handler) http.Handler { return next }

func newTestMux(repo *fakeRepo, s *fakeSigner) *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewFeedHandler(repo, s), passAuth)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestList_SignsEveryURLNewestFirst(t *testing.T) {
	repo := &fakeRepo{}
	_, _ = repo.Insert(context.Background(), "first", "a.jpg")
	_, _ = repo.Insert(context.Background(), "second", "b.jpg")
	repo.items = append(repo.items, models.FeedItem{ID: 3, Caption: "no media"})

	rec := do(t, newTestMux(repo, &fakeSigner{}), http.MethodGet, "/api/v0/feed", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got models.FeedItemList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Count)
	require.Len(t, got.Rows, 3)

	assert.Equal(t, int64(3), got.Rows[0].ID)
	assert.Empty(t, got.Rows[0].URL, "empty urls are left alone")
	assert.Equal(t, signedPrefix+"get/b.jpg?X-Amz-Signature=abc", got.Rows[1].URL)
	assert.Equal(t, signedPrefix+"get/a.jpg?X-Amz-Signature=abc", got.Rows[2].URL)

	assert.Equal(t, "a.jpg", repo.stored(t, 1).URL, "stored key must not be overwritten")
}

func TestList_Empty(t *testing.T) {
	rec := do(t, newTestMux(&fakeRepo{}, &fakeSigner{}), http.MethodGet, "/api/v0/feed", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"rows":[]}`, rec.Body.String())
}

func TestGet_ReturnsStoredKeyUnsigned(t *testing.T) {
	repo := &fakeRepo{}
	saved, _ := repo.Insert(context.Background(), "hello", "img123.jpg")

	rec := do(t, newTestMux(repo, &fakeSigner{}), http.MethodGet, "/api/v0/feed/1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.FeedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "img123.jpg", got.URL)
}

func TestGet_UnknownIDIsNullNot404(t *testing.T) {
	mux := newTestMux(&fakeRepo{}, &fakeSigner{})

	for _, path := range []string{"/api/v0/feed/999999", "/api/v0/feed/not-a-number"} {
		rec := do(t, mux, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()), path)
	}
}

func TestSignedURL(t *testing.T) {
	repo := &fakeRepo{}
	rec := do(t, newTestMux(repo, &fakeSigner{}), http.MethodGet, "/api/v0/feed/signed-url/img123.jpg", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	var got SignedURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, signedPrefix+"put/img123.jpg?X-Amz-Signature=def", got.URL)
	assert.Empty(t, repo.items, "signing an upload persists nothing")
}

func TestCreate(t *testing.T) {
	repo := &fakeRepo{}
	mux := newTestMux(repo, &fakeSigner{})

	rec := do(t, mux, http.MethodPost, "/api/v0/feed", `{"caption":"hello","url":"img123.jpg"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.FeedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "hello", got.Caption)
	assert.True(t, strings.HasPrefix(got.URL, signedPrefix+"get/img123.jpg"))
	assert.Equal(t, "img123.jpg", repo.stored(t, got.ID).URL)

	again := do(t, mux, http.MethodPost, "/api/v0/feed", `{"caption":"hello","url":"img123.jpg"}`)
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Len(t, repo.items, 2)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing caption", `{"url":"img123.jpg"}`, "Caption is required or malformed."},
		{"empty caption", `{"caption":"","url":"img123.jpg"}`, "Caption is required or malformed."},
		{"caption checked first", `{}`, "Caption is required or malformed."},
		{"malformed body", `{"caption":`, "Caption is required or malformed."},
		{"caption wrong type", `{"caption":42,"url":"img123.jpg"}`, "Caption is required or malformed."},
		{"missing url", `{"caption":"hello"}`, "File url is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			rec := do(t, newTestMux(repo, &fakeSigner{}), http.MethodPost, "/api/v0/feed", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var got messageResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.message, got.Message)
			assert.Empty(t, repo.items)
		})
	}
}

func TestInfrastructureFailuresAre500(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		repo   *fakeRepo
		signer *fakeSigner
		method string
		path   string
		body   string
	}{
		{"list store", &fakeRepo{err: boom}, &fakeSigner{}, http.MethodGet, "/api/v0/feed", ""},
		{"get store", &fakeRepo{err: boom}, &fakeSigner{}, http.MethodGet, "/api/v0/feed/1", ""},
		{"signed url", &fakeRepo{}, &fakeSigner{err: boom}, http.MethodGet, "/api/v0/feed/signed-url/a.jpg", ""},
		{"create store", &fakeRepo{err: boom}, &fakeSigner{}, http.MethodPost, "/api/v0/feed", `{"caption":"c","url":"a.jpg"}`},
		{"create signer", &fakeRepo{}, &fakeSigner{err: boom}, http.MethodPost, "/api/v0/feed", `{"caption":"c","url":"a.jpg"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestMux(tt.repo, tt.signer), tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestList_SignerFailure(t *testing.T) {
	repo := &fakeRepo{}
	_, _ = repo.Insert(context.Background(), "c", "a.jpg")

	rec := do(t, newTestMux(repo, &fakeSigner{err: errors.New("expired credentials")}), http.MethodGet, "/api/v0/feed", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
