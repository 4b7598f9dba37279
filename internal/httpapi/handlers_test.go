package httpapi_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/auth"
	"github.com/devzbysiu/dox-sub000/internal/cipher"
	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/fs"
	"github.com/devzbysiu/dox-sub000/internal/httpapi"
)

type fakeIndex struct {
	searchResult *entity.SearchResult
	allResult    *entity.SearchResult
}

func (f fakeIndex) Search(_ entity.User, _ string) (*entity.SearchResult, error) {
	return f.searchResult, nil
}

func (f fakeIndex) AllDocs(_ entity.User) (*entity.SearchResult, error) {
	return f.allResult, nil
}

type staticJWKS struct {
	key *rsa.PrivateKey
	kid string
}

func (s staticJWKS) Fetch(_ context.Context) ([]byte, error) {
	doc := map[string]any{
		"keys": []map[string]string{{
			"kid": s.kid,
			"kty": "RSA",
			"n":   base64.RawURLEncoding.EncodeToString(s.key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01}),
		}},
	}
	return json.Marshal(doc)
}

func newAuthedRouter(t *testing.T, h *httpapi.Handlers) (chi.Router, func(*http.Request)) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const kid = "test-key"

	cache := auth.NewJWKSCache(staticJWKS{key: key, kid: kid}, time.Minute)
	verifier := auth.NewVerifier(cache.Keyfunc)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	router := httpapi.NewRouter(h, verifier)
	attach := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) }
	return router, attach
}

func TestSearch_ReturnsEntries(t *testing.T) {
	result := entity.NewSearchResult()
	result.Add(entity.SearchEntry{Filename: "doc1.png", Thumbnail: "doc1.png"})

	h := httpapi.NewHandlers(fakeIndex{searchResult: result, allResult: entity.NewSearchResult()}, fs.NewLocalFilesystem(), cipher.New(), t.TempDir(), t.TempDir(), t.TempDir(), nil)
	router, attach := newAuthedRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/search?q=doc1", nil)
	attach(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body httpapi.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "doc1.png", body.Entries[0].Filename)
}

func TestThumbnail_MissingFile_Returns404(t *testing.T) {
	h := httpapi.NewHandlers(fakeIndex{searchResult: entity.NewSearchResult(), allResult: entity.NewSearchResult()}, fs.NewLocalFilesystem(), cipher.New(), t.TempDir(), t.TempDir(), t.TempDir(), nil)
	router, attach := newAuthedRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/thumbnail/missing.png", nil)
	attach(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocument_DecryptsAndReturnsBytes(t *testing.T) {
	local := fs.NewLocalFilesystem()
	c := cipher.New()
	docsDir := t.TempDir()

	user := entity.NewUser("alice@example.com")
	path, err := entity.NewSafePath(filepath.Join(docsDir, user.Dir(), "doc1.pdf"))
	require.NoError(t, err)

	plaintext := []byte("hello pdf bytes")
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	require.NoError(t, local.Save(path, ciphertext))

	h := httpapi.NewHandlers(fakeIndex{searchResult: entity.NewSearchResult(), allResult: entity.NewSearchResult()}, local, c, docsDir, t.TempDir(), t.TempDir(), nil)
	router, attach := newAuthedRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/document/doc1.pdf", nil)
	attach(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plaintext, rec.Body.Bytes())
}

func TestUpload_WritesFileUnderWatchedDir(t *testing.T) {
	local := fs.NewLocalFilesystem()
	watchedDir := t.TempDir()
	h := httpapi.NewHandlers(fakeIndex{searchResult: entity.NewSearchResult(), allResult: entity.NewSearchResult()}, local, cipher.New(), t.TempDir(), t.TempDir(), watchedDir, nil)
	router, attach := newAuthedRouter(t, h)

	payload := map[string]string{
		"filename": "doc1.png",
		"body":     base64.StdEncoding.EncodeToString([]byte("raster bytes")),
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/document/upload", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	attach(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	user := entity.NewUser("alice@example.com")
	path, err := entity.NewSafePath(filepath.Join(watchedDir, user.Dir(), "doc1.png"))
	require.NoError(t, err)
	assert.True(t, local.Exists(path))
}
