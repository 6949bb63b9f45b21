// Package server implements the dataset server consumed by the client package.
//
// The API is HTTP with opaque bearer-token authentication:
//
//	GET  /api/datasets          list dataset identifiers
//	GET  /api/datasets/{uuid}   fetch a dataset archive, following its replaces-chain
//	PUT  /api/datasets/{uuid}   create or replace a dataset
//	GET  /api/resolve/{uuid}    map an identifier to the newest entry of its replaces-chain
//	GET  /api/static            find a static dataset by name and hash
//
// Dataset payloads are .zdc archive bytes.
// The server enforces the consistency rules of the container lifecycle:
// multi-step replacement gated on strictly increasing modification times,
// terminal complete datasets, and creator-only supersession.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/server/storage"
	"github.com/bobg/zdc/zdcfile"
)

// Server handles dataset API requests against a storage backend.
type Server struct {
	store  storage.Store
	tokens map[string]string // credential token -> principal

	// putMu serializes the check-and-put sequence of uploads.
	// The consistency gates consult the stored entry and must act
	// on the same snapshot they checked.
	putMu sync.Mutex
}

// New produces a new Server.
// The tokens map assigns a principal name to each accepted credential.
func New(store storage.Store, tokens map[string]string) *Server {
	return &Server{store: store, tokens: tokens}
}

var _ http.Handler = &Server{}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	principal, ok := s.authenticate(req)
	if !ok {
		httpErr(w, http.StatusUnauthorized, "unauthorized", "missing or unknown credential")
		return
	}

	switch {
	case req.URL.Path == "/api/static" && req.Method == http.MethodGet:
		s.findStatic(w, req)
	case req.URL.Path == "/api/datasets" && req.Method == http.MethodGet:
		s.list(w, req)
	case strings.HasPrefix(req.URL.Path, "/api/resolve/") && req.Method == http.MethodGet:
		s.resolve(w, req, strings.TrimPrefix(req.URL.Path, "/api/resolve/"))
	case strings.HasPrefix(req.URL.Path, "/api/datasets/"):
		uuid := strings.TrimPrefix(req.URL.Path, "/api/datasets/")
		switch req.Method {
		case http.MethodGet:
			s.get(w, req, uuid)
		case http.MethodPut:
			s.put(w, req, uuid, principal)
		default:
			httpErr(w, http.StatusMethodNotAllowed, "method", "method not allowed")
		}
	default:
		httpErr(w, http.StatusNotFound, "not_found", "no such resource")
	}
}

func (s *Server) authenticate(req *http.Request) (string, bool) {
	auth := req.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		return "", false
	}
	principal, ok := s.tokens[token]
	return principal, ok
}

func (s *Server) put(w http.ResponseWriter, req *http.Request, uuid, principal string) {
	ctx := req.Context()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		httpErr(w, http.StatusBadRequest, "invalid", "reading request body: "+err.Error())
		return
	}
	cont, err := zdcfile.Decode(body)
	if err != nil {
		httpErr(w, http.StatusBadRequest, "invalid", "decoding archive: "+err.Error())
		return
	}
	content := cont.Content()
	if content.UUID != uuid {
		httpErr(w, http.StatusBadRequest, "invalid", "archive uuid does not match request path")
		return
	}

	entry := &storage.Entry{
		UUID:     content.UUID,
		Owner:    principal,
		Name:     content.ContainerType.Name,
		Hash:     content.Hash,
		Static:   content.Static,
		Complete: content.Complete,
		Replaces: content.Replaces,
		Created:  content.Created.Time,
		Modified: content.Modified.Time,
		Data:     body,
	}

	s.putMu.Lock()
	defer s.putMu.Unlock()

	var predecessor string
	existing, err := s.store.Get(ctx, uuid)
	switch {
	case errors.Is(err, zdc.ErrNotFound):
		if content.Replaces != "" {
			pred, err := s.store.Get(ctx, content.Replaces)
			if errors.Is(err, zdc.ErrNotFound) {
				httpErr(w, http.StatusNotFound, "not_found", "predecessor "+content.Replaces+" not found")
				return
			}
			if err != nil {
				httpErr(w, http.StatusInternalServerError, "internal", err.Error())
				return
			}
			if pred.Owner != principal {
				httpErr(w, http.StatusForbidden, "not_owner", "only the creator may supersede a dataset")
				return
			}
			predecessor = pred.UUID
		}

	case err != nil:
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return

	default:
		if existing.Complete {
			httpErr(w, http.StatusForbidden, "immutable", "dataset "+uuid+" is complete")
			return
		}
		if existing.Owner != principal {
			httpErr(w, http.StatusForbidden, "not_owner", "dataset "+uuid+" belongs to another principal")
			return
		}
		if !entry.Modified.After(existing.Modified) {
			httpErr(w, http.StatusConflict, "stale", "modification time must strictly increase")
			return
		}
		entry.Replaces = existing.Replaces
		entry.ReplacedBy = existing.ReplacedBy
	}

	if err = s.store.Put(ctx, entry); err != nil {
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	// Link the predecessor only once its successor is durably stored,
	// so a failed Put never leaves the chain pointing at a missing entry.
	if predecessor != "" {
		if err = s.store.SetReplacedBy(ctx, predecessor, uuid); err != nil {
			httpErr(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(content)
}

// follow walks the replaces-chain from uuid to its newest entry.
func (s *Server) follow(ctx context.Context, uuid string) (*storage.Entry, error) {
	entry, err := s.store.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	// Bound the walk in case of a corrupted cyclic chain.
	for i := 0; entry.ReplacedBy != "" && i < 1000; i++ {
		next, err := s.store.Get(ctx, entry.ReplacedBy)
		if err != nil {
			break
		}
		entry = next
	}
	return entry, nil
}

// get serves a dataset archive,
// transparently following the replaces-chain to its newest entry.
func (s *Server) get(w http.ResponseWriter, req *http.Request, uuid string) {
	entry, err := s.follow(req.Context(), uuid)
	if errors.Is(err, zdc.ErrNotFound) {
		httpErr(w, http.StatusNotFound, "not_found", "dataset "+uuid+" not found")
		return
	}
	if err != nil {
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Write(entry.Data)
}

// resolve reports the identifier of the newest entry
// of the replaces-chain starting at uuid, without the archive payload.
// Clients consult it before serving a dataset from a local cache:
// archive bytes are immutable, but the chain is not.
func (s *Server) resolve(w http.ResponseWriter, req *http.Request, uuid string) {
	entry, err := s.follow(req.Context(), uuid)
	if errors.Is(err, zdc.ErrNotFound) {
		httpErr(w, http.StatusNotFound, "not_found", "dataset "+uuid+" not found")
		return
	}
	if err != nil {
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		UUID string `json:"uuid"`
	}{UUID: entry.UUID})
}

func (s *Server) findStatic(w http.ResponseWriter, req *http.Request) {
	var (
		name = req.URL.Query().Get("name")
		hash = req.URL.Query().Get("hash")
	)
	if name == "" || hash == "" {
		httpErr(w, http.StatusBadRequest, "invalid", "name and hash parameters are required")
		return
	}

	entry, err := s.store.FindStatic(req.Context(), name, hash)
	if errors.Is(err, zdc.ErrNotFound) {
		httpErr(w, http.StatusNotFound, "not_found", "no static dataset "+name+" with that hash")
		return
	}
	if err != nil {
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Write(entry.Data)
}

func (s *Server) list(w http.ResponseWriter, req *http.Request) {
	uuids := []string{}
	err := s.store.List(req.Context(), "", func(uuid string) error {
		uuids = append(uuids, uuid)
		return nil
	})
	if err != nil {
		httpErr(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uuids)
}

type errResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func httpErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errResponse{Code: code, Error: msg})
}
