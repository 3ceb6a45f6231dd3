package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"saccochain/native/docs"
)

const (
	codeDocsInvalidParams = -32040
	codeDocsForbidden     = -32041
	codeDocsDuplicate     = -32042
	codeDocsRateLimited   = -32043
	codeDocsPaused        = -32044
	codeDocsInternal      = -32045
)

func writeDocsError(w http.ResponseWriter, id int, err error) {
	if writeModuleGuardError(w, id, docs.ModuleName, codeDocsRateLimited, codeDocsPaused, err) {
		return
	}
	switch {
	case errors.Is(err, docs.ErrInvalidEntityID),
		errors.Is(err, docs.ErrInvalidCategory),
		errors.Is(err, docs.ErrInvalidHash),
		errors.Is(err, docs.ErrZeroAddress):
		writeError(w, http.StatusBadRequest, id, codeDocsInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, docs.ErrDuplicateDocument):
		writeError(w, http.StatusConflict, id, codeDocsDuplicate, "conflict", err.Error())
	case errors.Is(err, docs.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeDocsForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeDocsInternal, "internal_error", err.Error())
	}
}

func parseDocHash(value string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return hash, fmt.Errorf("hash is required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("invalid hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("invalid hash: expected %d bytes, got %d", len(hash), len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

type docsRegisterParams struct {
	Caller   string `json:"caller"`
	EntityID string `json:"entityId"`
	Category string `json:"category"`
	Hash     string `json:"hash"`
}

func (s *Server) handleDocsRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params docsRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	hash, err := parseDocHash(params.Hash)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	record, err := s.node.DocsRegister(caller, params.EntityID, params.Category, hash)
	if err != nil {
		writeDocsError(w, req.ID, err)
		return
	}
	result := newDocRecordJSON(*record)
	writeResult(w, req.ID, &result)
}

type docsLookupParams struct {
	EntityID string `json:"entityId"`
}

func (s *Server) handleDocsLookup(w http.ResponseWriter, req *RPCRequest) {
	var params docsLookupParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	records, err := s.node.DocsLookup(params.EntityID)
	if err != nil {
		writeDocsError(w, req.ID, err)
		return
	}
	out := make([]docRecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, newDocRecordJSON(rec))
	}
	writeResult(w, req.ID, out)
}
