package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/devzbysiu/dox-sub000/internal/auth"
	"github.com/devzbysiu/dox-sub000/internal/cipher"
	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/fs"
)

// SearchIndex is the capability the HTTP surface needs from the search
// index, narrowed so handlers can be exercised against a fake.
type SearchIndex interface {
	Search(user entity.User, query string) (*entity.SearchResult, error)
	AllDocs(user entity.User) (*entity.SearchResult, error)
}

// Handlers wires the HTTP surface's operations to its collaborators.
type Handlers struct {
	index      SearchIndex
	filesystem fs.Filesystem
	cipher     cipher.Reader
	docsDir    string
	thumbsDir  string
	watchedDir string
	logger     *slog.Logger
}

// NewHandlers builds Handlers.
func NewHandlers(index SearchIndex, filesystem fs.Filesystem, c cipher.Reader, docsDir, thumbsDir, watchedDir string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		index:      index,
		filesystem: filesystem,
		cipher:     c,
		docsDir:    docsDir,
		thumbsDir:  thumbsDir,
		watchedDir: watchedDir,
		logger:     logger.With("component", "httpapi"),
	}
}

// RegisterRoutes registers every operation spec §4.12 names.
func RegisterRoutes(api huma.API, h *Handlers) {
	huma.Get(api, "/search", func(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized(err.Error())
		}
		result, err := h.index.Search(user, input.Query)
		if err != nil {
			return nil, huma.Error500InternalServerError("search failed", err)
		}
		return &SearchOutput{Body: toSearchResponse(result)}, nil
	})

	huma.Get(api, "/thumbnails/all", func(ctx context.Context, input *struct{}) (*SearchOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized(err.Error())
		}
		result, err := h.index.AllDocs(user)
		if err != nil {
			return nil, huma.Error500InternalServerError("listing failed", err)
		}
		return &SearchOutput{Body: toSearchResponse(result)}, nil
	})

	huma.Get(api, "/thumbnail/{name}", func(ctx context.Context, input *ArtifactInput) (*ArtifactOutput, error) {
		return h.loadArtifact(ctx, h.thumbsDir, input.Name)
	})

	huma.Get(api, "/document/{name}", func(ctx context.Context, input *ArtifactInput) (*ArtifactOutput, error) {
		return h.loadArtifact(ctx, h.docsDir, input.Name)
	})

	huma.Post(api, "/document/upload", func(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
		user, err := currentUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized(err.Error())
		}
		data, err := base64.StdEncoding.DecodeString(input.Body.Content)
		if err != nil {
			return nil, huma.Error400BadRequest("body must be base64-encoded", err)
		}
		path, err := entity.NewSafePath(filepath.Join(h.watchedDir, user.Dir(), input.Body.Filename))
		if err != nil {
			return nil, huma.Error400BadRequest("invalid filename", err)
		}
		if err := h.filesystem.Save(path, data); err != nil {
			return nil, huma.Error500InternalServerError("failed to save upload", err)
		}
		return &UploadOutput{Body: UploadResponse{Filename: input.Body.Filename}}, nil
	}, func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
}

func (h *Handlers) loadArtifact(ctx context.Context, dir, name string) (*ArtifactOutput, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, huma.Error401Unauthorized(err.Error())
	}
	path, err := entity.NewSafePath(filepath.Join(dir, user.Dir(), name))
	if err != nil {
		return nil, huma.Error400BadRequest("invalid name", err)
	}
	ciphertext, err := h.filesystem.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotFound) {
			return nil, huma.Error404NotFound("not found")
		}
		return nil, huma.Error500InternalServerError("failed to load artifact", err)
	}
	plaintext, err := h.cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to decrypt artifact", err)
	}
	return &ArtifactOutput{Body: plaintext}, nil
}

// currentUser pulls the authenticated email out of the request context
// (stashed by auth.Verifier.Middleware) and turns it into an entity.User.
func currentUser(ctx context.Context) (entity.User, error) {
	email, ok := auth.EmailFromContext(ctx)
	if !ok {
		return entity.User{}, fmt.Errorf("no authenticated user in context")
	}
	return entity.NewUser(email), nil
}

func toSearchResponse(result *entity.SearchResult) SearchResponse {
	entries := make([]EntryResponse, 0, result.Len())
	for _, e := range result.Entries() {
		entries = append(entries, EntryResponse{Filename: e.Filename, Thumbnail: e.Thumbnail})
	}
	return SearchResponse{Entries: entries}
}

// Request/response types

type HealthBody struct {
	Status string `json:"status"`
}

type HealthOutput struct {
	Body HealthBody
}

type SearchInput struct {
	Query string `query:"q" doc:"Search query"`
}

type SearchOutput struct {
	Body SearchResponse
}

type SearchResponse struct {
	Entries []EntryResponse `json:"entries"`
}

type EntryResponse struct {
	Filename  string `json:"filename"`
	Thumbnail string `json:"thumbnail"`
}

type ArtifactInput struct {
	Name string `path:"name"`
}

type ArtifactOutput struct {
	Body []byte
}

type UploadBody struct {
	Filename string `json:"filename"`
	Content  string `json:"body"`
}

type UploadInput struct {
	Body UploadBody
}

type UploadOutput struct {
	Body UploadResponse
}

type UploadResponse struct {
	Filename string `json:"filename"`
}
