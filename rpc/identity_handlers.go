package rpc

import (
	"errors"
	"net/http"

	"saccochain/native/identity"
)

const (
	codeIdentityInvalidParams = -32030
	codeIdentityForbidden     = -32031
	codeIdentityNotFound      = -32032
	codeIdentityConflict      = -32033
	codeIdentityRateLimited   = -32034
	codeIdentityPaused        = -32035
	codeIdentityInternal      = -32036
)

func writeIdentityError(w http.ResponseWriter, id int, err error) {
	if writeModuleGuardError(w, id, identity.ModuleName, codeIdentityRateLimited, codeIdentityPaused, err) {
		return
	}
	switch {
	case errors.Is(err, identity.ErrInvalidAlias), errors.Is(err, identity.ErrZeroAddress):
		writeError(w, http.StatusBadRequest, id, codeIdentityInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, identity.ErrAliasTaken):
		writeError(w, http.StatusConflict, id, codeIdentityConflict, "conflict", err.Error())
	case errors.Is(err, identity.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeIdentityForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeIdentityInternal, "internal_error", err.Error())
	}
}

type identitySetAliasParams struct {
	Caller string `json:"caller"`
	Alias  string `json:"alias"`
}

type identityAliasResult struct {
	Address string `json:"address"`
	Alias   string `json:"alias"`
}

func (s *Server) handleIdentitySetAlias(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params identitySetAliasParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	alias, err := s.node.IdentitySetAlias(caller, params.Alias)
	if err != nil {
		writeIdentityError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, identityAliasResult{Address: caller.String(), Alias: alias})
}

type identityResolveParams struct {
	Alias string `json:"alias"`
}

func (s *Server) handleIdentityResolve(w http.ResponseWriter, req *RPCRequest) {
	var params identityResolveParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, ok, err := s.node.IdentityResolve(params.Alias)
	if err != nil {
		writeIdentityError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeIdentityNotFound, "not_found", "alias is not registered")
		return
	}
	writeResult(w, req.ID, identityAliasResult{Address: addr.String(), Alias: params.Alias})
}

func (s *Server) handleIdentityAliasOf(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address, "address")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	alias, ok, err := s.node.IdentityAliasOf(addr)
	if err != nil {
		writeIdentityError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeIdentityNotFound, "not_found", "address has no alias")
		return
	}
	writeResult(w, req.ID, identityAliasResult{Address: addr.String(), Alias: alias})
}

type identitySetVotingWeightParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
	Weight uint64 `json:"weight"`
}

type identityVotingWeightResult struct {
	Address string `json:"address"`
	Weight  uint64 `json:"weight"`
}

func (s *Server) handleIdentitySetVotingWeight(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params identitySetVotingWeightParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	target, err := parseAddress(params.Target, "target")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.IdentitySetVotingWeight(caller, target, params.Weight); err != nil {
		writeIdentityError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, identityVotingWeightResult{Address: target.String(), Weight: params.Weight})
}

func (s *Server) handleIdentityVotingWeight(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address, "address")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	weight, err := s.node.IdentityVotingWeight(addr)
	if err != nil {
		writeIdentityError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, identityVotingWeightResult{Address: addr.String(), Weight: weight})
}
