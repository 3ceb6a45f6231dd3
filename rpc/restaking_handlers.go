package rpc

import (
	"errors"
	"net/http"

	"saccochain/native/coop"
	"saccochain/native/restaking"
)

const (
	codeRestakingInvalidParams = -32050
	codeRestakingForbidden     = -32051
	codeRestakingConflict      = -32052
	codeRestakingRateLimited   = -32053
	codeRestakingPaused        = -32054
	codeRestakingInternal      = -32055
)

func writeRestakingError(w http.ResponseWriter, id int, err error) {
	if writeModuleGuardError(w, id, restaking.ModuleName, codeRestakingRateLimited, codeRestakingPaused, err) {
		return
	}
	switch {
	case errors.Is(err, restaking.ErrInvalidAmount), errors.Is(err, restaking.ErrZeroAddress):
		writeError(w, http.StatusBadRequest, id, codeRestakingInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, restaking.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeRestakingForbidden, "forbidden", err.Error())
	case errors.Is(err, restaking.ErrStrategyNotConfigured),
		errors.Is(err, restaking.ErrInsufficientTreasury),
		errors.Is(err, restaking.ErrExceedsAllocation),
		errors.Is(err, restaking.ErrInsufficientStrategy):
		writeError(w, http.StatusConflict, id, codeRestakingConflict, "conflict", err.Error())
	default:
		// The combined yield report distributes through the cooperative
		// engine first, so its failures surface here too.
		if coop.Classify(err) != coop.KindUnknown {
			writeCoopError(w, id, err)
			return
		}
		writeError(w, http.StatusInternalServerError, id, codeRestakingInternal, "internal_error", err.Error())
	}
}

type restakingAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleRestakingAllocate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params restakingAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	position, err := s.node.RestakingAllocate(caller, amount)
	if err != nil {
		writeRestakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPositionJSON(position))
}

func (s *Server) handleRestakingRecall(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params restakingAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	position, err := s.node.RestakingRecall(caller, amount)
	if err != nil {
		writeRestakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPositionJSON(position))
}

type restakingReportYieldResult struct {
	Position  *positionJSON `json:"position"`
	PerMember string        `json:"perMember"`
}

func (s *Server) handleRestakingReportYield(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if err := s.requireAuth(r); err != nil {
		writeUnauthorized(w, req.ID, err)
		return
	}
	var params restakingAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	position, perMember, err := s.node.RestakingReportYield(caller, amount)
	if err != nil {
		writeRestakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, restakingReportYieldResult{
		Position:  newPositionJSON(position),
		PerMember: formatWei(perMember),
	})
}

func (s *Server) handleRestakingGetPosition(w http.ResponseWriter, req *RPCRequest) {
	if err := requireNoParams(req); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	position, err := s.node.RestakingPosition()
	if err != nil {
		writeRestakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newPositionJSON(position))
}
