package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bondchain/core"
	"bondchain/crypto"
	"bondchain/native/bond"
	nativecommon "bondchain/native/common"
	"bondchain/native/treasury"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "height": s.svc.Height()})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Markets(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"markets": ids})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Market(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketResponse(view))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	owner, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid address")
		return
	}
	view, err := s.svc.Position(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionResponse(view))
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	value, err := parseAmount("value", r.URL.Query().Get("value"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	payout, err := s.svc.PayoutFor(r.Context(), chi.URLParam(r, "id"), value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value.String(), "payout": payout.String()})
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	account, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid address")
		return
	}
	next, err := s.svc.NextNonce(r.Context(), account)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NonceResponse{Account: account.String(), Nonce: next})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	depositor, err := parseAddress("depositor", req.Depositor)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	maxPrice, err := parseAmount("max_price", req.MaxPrice)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "depositor", depositor, req.signedRequest, actionDeposit,
		depositor.String(), amount.String(), maxPrice.String())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	result, err := s.svc.Deposit(ctx, chiMarket(r), depositor, amount, maxPrice)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DepositResponse{
		Value:     result.Value.String(),
		Payout:    result.Payout.String(),
		Fee:       result.Fee.String(),
		Credited:  result.Credited.String(),
		PricePaid: result.PricePaid.String(),
		MaturesAt: result.MaturesAt,
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	depositor, err := parseAddress("depositor", req.Depositor)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "depositor", depositor, req.signedRequest, actionRedeem, depositor.String())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	result, err := s.svc.Redeem(ctx, chiMarket(r), depositor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{
		Paid:      result.Paid.String(),
		Remaining: result.Remaining.String(),
		Closed:    result.Closed,
	})
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	param, err := bond.ParseTermsParameter(req.Parameter)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "parameter must be one of VESTING, PAYOUT, DEBT")
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "caller", caller, req.signedRequest, actionTerms,
		caller.String(), param.String(), value.String())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if err := s.svc.SetBondTerms(ctx, chiMarket(r), caller, param, value); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"parameter": param.String(), "value": value.String()})
}

func (s *Server) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := parseAmount("rate", req.Rate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := parseAmount("target", req.Target)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "caller", caller, req.signedRequest, actionAdjustment,
		caller.String(), strconv.FormatBool(req.Add), rate.String(), target.String(), strconv.FormatUint(req.Buffer, 10))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if err := s.svc.SetAdjustment(ctx, chiMarket(r), caller, req.Add, rate, target, req.Buffer); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustmentJSON{Add: req.Add, Rate: rate.String(), Target: target.String(), Buffer: req.Buffer})
}

func (s *Server) handleSubsidyReset(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "caller", caller, req.signedRequest, actionSubsidyReset, caller.String())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	previous, err := s.svc.ResetSubsidyCounter(ctx, chiMarket(r), caller)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payout_since_last_subsidy": previous.String()})
}

func (s *Server) handleFeeTreasury(w http.ResponseWriter, r *http.Request) {
	var req feeTreasuryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	feeTreasury, err := parseAddress("fee_treasury", req.FeeTreasury)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, err := s.authenticate(r, "caller", caller, req.signedRequest, actionFeeTreasury,
		caller.String(), feeTreasury.String())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if err := s.svc.SetFeeTreasury(ctx, chiMarket(r), caller, feeTreasury); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fee_treasury": feeTreasury.String()})
}

func chiMarket(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func parseAddress(field, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s", field)
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || !bond.FitsUint256(value) {
		return nil, fmt.Errorf("invalid %s", field)
	}
	return value, nil
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bond.ErrMarketNotFound), errors.Is(err, bond.ErrNoBond), errors.Is(err, treasury.ErrTreasuryNotFound):
		return http.StatusNotFound
	case errors.Is(err, bond.ErrUnauthorized), errors.Is(err, treasury.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded), errors.Is(err, nativecommon.ErrQuotaPrincipalExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, bond.ErrVestingNotSet), errors.Is(err, bond.ErrDebtOutstanding),
		errors.Is(err, core.ErrNonceMismatch):
		return http.StatusConflict
	case errors.Is(err, bond.ErrSlippage), errors.Is(err, bond.ErrMaxCapacity),
		errors.Is(err, bond.ErrBondTooSmall), errors.Is(err, bond.ErrBondTooLarge),
		errors.Is(err, bond.ErrVestingTooShort), errors.Is(err, bond.ErrPayoutTooHigh),
		errors.Is(err, bond.ErrIncrementTooLarge), errors.Is(err, bond.ErrInvalidParameter),
		errors.Is(err, bond.ErrInvalidAmount), errors.Is(err, bond.ErrInvalidMaxPrice),
		errors.Is(err, bond.ErrInvalidDepositor), errors.Is(err, bond.ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "api internal error",
			"request_id", requestIDFrom(r.Context()),
			"error", err.Error())
		message = http.StatusText(status)
	}
	writeError(w, r, status, message)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *authError
	if errors.As(err, &authErr) {
		writeError(w, r, authErr.status, authErr.message)
		return
	}
	writeError(w, r, http.StatusUnauthorized, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFrom(r.Context())})
}
