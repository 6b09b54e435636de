package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTicket(t *testing.T, f *testFixture, userID uint) string {
	t.Helper()
	uploadURL, err := f.srv.storage.IssueTicket(httptest.NewRequest(http.MethodGet, "/", nil).Context(), userID)
	require.NoError(t, err)
	return uploadURL[strings.LastIndex(uploadURL, "/")+1:]
}

func uploadBytes(t *testing.T, f *testFixture, ticket, contentType string, data []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/storage/upload/"+ticket, bytes.NewReader(data))
	req.Header.Set("Content-Type", contentType)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestUploadImage_UnknownTicketRejected(t *testing.T) {
	f := setupFixture(t)

	resp := uploadBytes(t, f, "no-such-ticket", "image/png", []byte("data"))
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadImage_TicketIsSingleUse(t *testing.T) {
	f := setupFixture(t)
	user, _ := f.createUser(t, "uploader1", "password123")
	ticket := issueTicket(t, f, user.ID)

	first := uploadBytes(t, f, ticket, "image/png", []byte("first"))
	assert.Equal(t, http.StatusOK, first.StatusCode)
	_ = first.Body.Close()

	replay := uploadBytes(t, f, ticket, "image/png", []byte("second"))
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	_ = replay.Body.Close()
}

func TestUploadImage_StoresAndServesBlob(t *testing.T) {
	f := setupFixture(t)
	user, _ := f.createUser(t, "uploader2", "password123")
	ticket := issueTicket(t, f, user.ID)

	content := []byte("jpeg-ish bytes")
	resp := uploadBytes(t, f, ticket, "image/jpeg", content)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		StorageID string `json:"storageId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	_ = resp.Body.Close()
	require.NotEmpty(t, out.StorageID)

	get, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/storage/"+out.StorageID, nil))
	require.NoError(t, err)
	body := readBody(t, get)

	assert.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, "image/jpeg", get.Header.Get("Content-Type"))
	assert.Equal(t, string(content), body)
	assert.Contains(t, get.Header.Get("Cache-Control"), "immutable")
}

func TestUploadImage_EmptyBodyRejected(t *testing.T) {
	f := setupFixture(t)
	user, _ := f.createUser(t, "uploader3", "password123")
	ticket := issueTicket(t, f, user.ID)

	resp := uploadBytes(t, f, ticket, "image/png", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStoredImage_Unknown(t *testing.T) {
	f := setupFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/api/storage/does-not-exist", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
