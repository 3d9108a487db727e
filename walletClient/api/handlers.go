package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pushchain/push-wallet-signer/walletClient/dispatcher"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

const (
	maxRequestBytes = 2 << 20

	sessionHeader = "X-Protocol-Session-Id"
	codeAbandoned = "ABANDONED"
	codeBadInput  = "BAD_REQUEST"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCreateAccount handles POST /api/v1/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.wallet.CreateAccount(req.WalletID, req.ProtocolID, req.SelfID)
	s.respond(w, r, f, err, func(v string) interface{} { return CreateAccountResponse{Handle: v} })
}

// handleGetAddress handles POST /api/v1/address
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.wallet.GetAddress(req.Handle)
	s.respond(w, r, f, err, func(v string) interface{} { return AddressResponse{Address: v} })
}

// handleSendTransaction handles POST /api/v1/transactions
func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request) {
	var req SendTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.wallet.SendTransaction(req.ProtocolID, req.Handle, req.Transaction)
	s.respond(w, r, f, err, func(v string) interface{} { return SendTransactionResponse{Result: v} })
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: codeBadInput, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// respond waits for f with the request context. A client that goes away
// only abandons the result; the operation itself keeps running.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, f *dispatcher.Future, err error, wrap func(string) interface{}) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(sessionHeader, f.SessionID())

	value, err := f.Await(r.Context())
	if err != nil {
		if uerrors.CodeOf(err) == "" && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			s.logger.Debug().Str("session_id", f.SessionID()).Msg("caller abandoned operation")
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Code: codeAbandoned, Error: err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wrap(value))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := uerrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("code", string(code)).Msg("request failed")
	}
	if code == "" {
		code = uerrors.ErrCodeInternal
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Error: err.Error()})
}

func statusFor(code uerrors.ErrorCode) int {
	switch code {
	case uerrors.ErrCodeInvalidDescriptor, uerrors.ErrCodeParse, uerrors.ErrCodeValidation:
		return http.StatusBadRequest
	case uerrors.ErrCodeProtocolAborted:
		return http.StatusConflict
	case uerrors.ErrCodeNetwork:
		return http.StatusServiceUnavailable
	case uerrors.ErrCodeEngine:
		return http.StatusBadGateway
	case uerrors.ErrCodeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
