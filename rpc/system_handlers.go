package rpc

import (
	"net/http"
)

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
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
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, newBalanceJSON(addr.String(), account))
}

type systemSetPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type systemPausedResult struct {
	Paused []string `json:"paused"`
}

func (s *Server) handleSystemSetPaused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params systemSetPausedParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.SetModulePaused(params.Module, params.Paused); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, systemPausedResult{Paused: s.node.PausedModules()})
}

func (s *Server) handleSystemListPaused(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, systemPausedResult{Paused: s.node.PausedModules()})
}
