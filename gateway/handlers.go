package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"saccochain/native/coop"
)

type registerRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req registerRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		amount, err := decodeAmount(req.Amount, "amount")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrInvalidAmount, err)
		}
		member, refund, err := s.node.CoopRegister(caller, amount)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, registerResponse{Member: toMemberResponse(member), Refund: weiString(refund)}, nil
	})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleExitMember(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req callerRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		payout, err := s.node.CoopExit(caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, exitResponse{Payout: weiString(payout)}, nil
	})
}

type requestLoanRequest struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

func (s *Server) handleRequestLoan(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req requestLoanRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		borrower, err := decodeAddress(req.Borrower, "borrower")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		amount, err := decodeAmount(req.Amount, "amount")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrInvalidAmount, err)
		}
		proposal, err := s.node.CoopRequestLoan(borrower, amount)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toLoanProposalResponse(proposal, coop.ProposalPhaseEditing), nil
	})
}

type editLoanRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleEditLoanProposal(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		id, err := pathID(r)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrProposalNotFound, err)
		}
		var req editLoanRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		amount, err := decodeAmount(req.Amount, "amount")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrInvalidAmount, err)
		}
		proposal, err := s.node.CoopEditLoanProposal(caller, id, amount)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toLoanProposalResponse(proposal, coop.ProposalPhaseEditing), nil
	})
}

type voteRequest struct {
	Caller  string `json:"caller"`
	Support bool   `json:"support"`
}

func (s *Server) handleVoteLoan(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		id, err := pathID(r)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrProposalNotFound, err)
		}
		var req voteRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		proposal, loan, err := s.node.CoopVoteLoan(caller, id, req.Support)
		if err != nil {
			return 0, nil, err
		}
		phase := coop.ProposalPhaseVoting
		if loan != nil {
			phase = coop.ProposalPhaseExecuted
		}
		return http.StatusOK, voteLoanResponse{
			Proposal: toLoanProposalResponse(proposal, phase),
			Loan:     toLoanResponse(loan),
		}, nil
	})
}

type repayRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		id, err := pathID(r)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrLoanNotFound, err)
		}
		var req repayRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		amount, err := decodeAmount(req.Amount, "amount")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrInvalidAmount, err)
		}
		loan, refund, err := s.node.CoopRepayLoan(caller, id, amount)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, repayResponse{Loan: toLoanResponse(loan), Refund: weiString(refund)}, nil
	})
}

type proposeWithdrawalRequest struct {
	Proposer    string `json:"proposer"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
}

func (s *Server) handleProposeWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req proposeWithdrawalRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		proposer, err := decodeAddress(req.Proposer, "proposer")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		amount, err := decodeAmount(req.Amount, "amount")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrInvalidAmount, err)
		}
		destination, err := decodeAddress(req.Destination, "destination")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		proposal, err := s.node.CoopProposeWithdrawal(proposer, amount, destination, req.Reason)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toTreasuryProposalResponse(proposal), nil
	})
}

func (s *Server) handleVoteWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		id, err := pathID(r)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrProposalNotFound, err)
		}
		var req voteRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		proposal, err := s.node.CoopVoteWithdrawal(caller, id, req.Support)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toTreasuryProposalResponse(proposal), nil
	})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req callerRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		claimed, err := s.node.CoopClaimRewards(caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, claimResponse{Claimed: weiString(claimed)}, nil
	})
}

func (s *Server) handleClaimYield(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req callerRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		claimed, err := s.node.CoopClaimYield(caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, claimResponse{Claimed: weiString(claimed)}, nil
	})
}

type registerDocRequest struct {
	Caller   string `json:"caller"`
	EntityID string `json:"entityId"`
	Category string `json:"category"`
	Hash     string `json:"hash"`
}

func (s *Server) handleRegisterDoc(w http.ResponseWriter, r *http.Request) {
	s.runMutation(w, r, func(_ context.Context, body []byte) (int, interface{}, error) {
		var req registerDocRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, fmt.Errorf("%w: invalid JSON payload", coop.ErrInvalidAmount)
		}
		caller, err := decodeAddress(req.Caller, "caller")
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %s", coop.ErrZeroAddress, err)
		}
		var hash [32]byte
		decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(req.Hash), "0x"))
		if err != nil || len(decoded) != len(hash) {
			return 0, nil, fmt.Errorf("%w: hash must be 32 bytes of hex", coop.ErrInvalidAmount)
		}
		copy(hash[:], decoded)
		record, err := s.node.DocsRegister(caller, req.EntityID, req.Category, hash)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toDocResponse(*record), nil
	})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.node.CoopMembers()
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	out := make([]*memberResponse, 0, len(members))
	for _, member := range members {
		out = append(out, toMemberResponse(member))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	addr, err := decodeAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	member, err := s.node.CoopMember(addr)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(member))
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.node.CoopPolicy()
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyResponse(policy))
}

func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	balance, err := s.node.CoopTreasuryBalance()
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, treasuryResponse{
		Address: s.node.CoopTreasuryAddress().String(),
		Balance: weiString(balance),
	})
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	ids, err := s.node.CoopActiveLoanIDs()
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := s.node.CoopLoan(id)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleGetLoanProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	proposal, phase, err := s.node.CoopLoanProposal(id)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanProposalResponse(proposal, phase))
}

func (s *Server) handleGetTreasuryProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	proposal, err := s.node.CoopTreasuryProposal(id)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toTreasuryProposalResponse(proposal))
}

func (s *Server) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	addr, err := decodeAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	rewards, err := s.node.CoopPendingRewards(addr)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	response := rewardsResponse{Address: addr.String(), Interest: "0", Yield: "0"}
	if rewards != nil {
		response.Interest = weiString(rewards.Interest)
		response.Yield = weiString(rewards.Yield)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleQuoteLoan(w http.ResponseWriter, r *http.Request) {
	amount, err := decodeAmount(r.URL.Query().Get("amount"), "amount")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	terms, err := s.node.CoopQuoteLoanTerms(amount)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toTermsResponse(terms))
}

func (s *Server) handleDocsLookup(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "*")
	records, err := s.node.DocsLookup(entityID)
	if err != nil {
		writeJSONError(w, engineStatus(err), err)
		return
	}
	out := make([]docResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toDocResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}
