package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"compoundbank/crypto"
	"compoundbank/rpc/modules"
)

type compoundAmountParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type compoundAccountParams struct {
	Address string `json:"address"`
}

func (s *Server) handleCompoundLend(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleCompoundAmountTx(w, r, req, func(ctx context.Context, from crypto.Address, amount *big.Int) (interface{}, *modules.ModuleError) {
		return s.compound.Lend(ctx, from, amount)
	})
}

func (s *Server) handleCompoundBorrow(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleCompoundAmountTx(w, r, req, func(ctx context.Context, from crypto.Address, amount *big.Int) (interface{}, *modules.ModuleError) {
		return s.compound.Borrow(ctx, from, amount)
	})
}

func (s *Server) handleCompoundRefund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleCompoundAmountTx(w, r, req, func(ctx context.Context, from crypto.Address, amount *big.Int) (interface{}, *modules.ModuleError) {
		return s.compound.Refund(ctx, from, amount)
	})
}

func (s *Server) handleCompoundWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleCompoundAmountTx(w, r, req, func(ctx context.Context, from crypto.Address, amount *big.Int) (interface{}, *modules.ModuleError) {
		return s.compound.Withdraw(ctx, from, amount)
	})
}

func (s *Server) handleCompoundGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected address parameter", nil)
		return
	}
	var addressParam string
	if err := json.Unmarshal(req.Params[0], &addressParam); err != nil {
		var wrapped compoundAccountParams
		if err := json.Unmarshal(req.Params[0], &wrapped); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
			return
		}
		addressParam = wrapped.Address
	}
	if strings.TrimSpace(addressParam) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address required", nil)
		return
	}
	addr, err := decodeAddress(addressParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	position, moduleErr := s.compound.GetPosition(addr)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, position)
}

func (s *Server) handleCompoundGetLedger(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	ledger, moduleErr := s.compound.GetLedger()
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, ledger)
}

func (s *Server) handleCompoundAmountTx(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(context.Context, crypto.Address, *big.Int) (interface{}, *modules.ModuleError)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return
	}
	var params compoundAmountParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	from, err := decodeAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	result, moduleErr := fn(r.Context(), from, amount)
	if moduleErr != nil {
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}
