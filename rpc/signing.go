package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bondchain/core"
	"bondchain/crypto"
	"bondchain/observability/logging"
)

// Signed actions. Each names the digest domain of one mutating route.
const (
	actionDeposit      = "bond_deposit"
	actionRedeem       = "bond_redeem"
	actionTerms        = "bond_set_terms"
	actionAdjustment   = "bond_set_adjustment"
	actionSubsidyReset = "bond_reset_subsidy"
	actionFeeTreasury  = "bond_set_fee_treasury"
)

// maxSignatureTTL bounds how far in the future a request may expire.
const maxSignatureTTL = time.Hour

// signedRequest carries the replay guard and the recoverable signature over
// the request's action digest.
type signedRequest struct {
	Nonce     uint64 `json:"nonce"`
	Expires   int64  `json:"expires"`
	Signature string `json:"signature"`
}

// actionDigest binds a signature to the action, market, arguments, nonce and
// expiry of a request.
func actionDigest(action, market string, nonce uint64, expires int64, args ...string) []byte {
	fields := make([]string, 0, len(args)+3)
	fields = append(fields, market)
	fields = append(fields, args...)
	fields = append(fields, strconv.FormatUint(nonce, 10), strconv.FormatInt(expires, 10))
	return crypto.ActionDigest(action, fields...)
}

func decodeSignature(value string) ([]byte, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if cleaned == "" {
		return nil, errors.New("signature required")
	}
	sig, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, errors.New("invalid signature encoding")
	}
	if len(sig) != crypto.SignatureLength {
		return nil, crypto.ErrSignatureLength
	}
	return sig, nil
}

func encodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

type authError struct {
	status  int
	message string
}

func (e *authError) Error() string { return e.message }

// authenticate recovers the signer of req and requires it to be the account
// named in field. The returned context carries the signer so the service
// consumes its nonce with the operation.
func (s *Server) authenticate(r *http.Request, field string, claimed crypto.Address, req signedRequest, action string, args ...string) (context.Context, error) {
	if strings.TrimSpace(req.Signature) == "" {
		return nil, &authError{status: http.StatusUnauthorized, message: "signature required"}
	}
	if req.Nonce == 0 {
		return nil, &authError{status: http.StatusBadRequest, message: "nonce required"}
	}
	now := s.now().Unix()
	if req.Expires <= 0 {
		return nil, &authError{status: http.StatusBadRequest, message: "expires required"}
	}
	if req.Expires < now {
		return nil, &authError{status: http.StatusUnauthorized, message: "signature expired"}
	}
	if req.Expires > now+int64(maxSignatureTTL/time.Second) {
		return nil, &authError{status: http.StatusBadRequest, message: fmt.Sprintf("expires more than %s ahead", maxSignatureTTL)}
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		return nil, &authError{status: http.StatusBadRequest, message: err.Error()}
	}
	digest := actionDigest(action, chiMarket(r), req.Nonce, req.Expires, args...)
	signer, err := crypto.RecoverSigner(digest, sig)
	if err != nil {
		return nil, &authError{status: http.StatusUnauthorized, message: "invalid signature"}
	}
	if !signer.Equal(claimed) {
		s.logger.WarnContext(r.Context(), "request signature rejected",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("action", action),
			slog.String(field, logging.ShortAddress(claimed.String())),
			slog.String("signer", logging.ShortAddress(signer.String())),
			logging.MaskField("signature", req.Signature))
		return nil, &authError{status: http.StatusForbidden, message: "signature does not match " + field}
	}
	return core.WithSigner(r.Context(), core.Signer{Account: signer, Nonce: req.Nonce}), nil
}

// sign fills req for action using key.
func sign(key *crypto.PrivateKey, req *signedRequest, action, market string, args ...string) error {
	sig, err := key.Sign(actionDigest(action, market, req.Nonce, req.Expires, args...))
	if err != nil {
		return err
	}
	req.Signature = encodeSignature(sig)
	return nil
}

func amountArg(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
