package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bondchain/crypto"
	"bondchain/native/bond"
)

// APIError is a non-2xx reply from the bond API.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("bond api: %d %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("bond api: %d %s", e.Status, e.Message)
}

var errSigningKeyRequired = errors.New("bond api: signing key required")

// Client submits requests signed by one account to a bond API.
type Client struct {
	baseURL string
	key     *crypto.PrivateKey
	http    *http.Client
	bearer  string
	ttl     time.Duration
	now     func() time.Time
}

// NewClient returns a client for the API at baseURL signing with key.
func NewClient(baseURL string, key *crypto.PrivateKey) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		key:     key,
		http:    &http.Client{Timeout: 15 * time.Second},
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

// SetHTTPClient replaces the transport used for requests.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// SetBearer attaches an operator token to every request.
func (c *Client) SetBearer(token string) {
	c.bearer = strings.TrimSpace(token)
}

// Address is the account the client signs for.
func (c *Client) Address() crypto.Address {
	if c.key == nil {
		return crypto.Address{}
	}
	return c.key.PubKey().Address()
}

func (c *Client) Market(ctx context.Context, marketID string) (*MarketResponse, error) {
	var out MarketResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(marketID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NextNonce fetches the nonce the client's account signs with next.
func (c *Client) NextNonce(ctx context.Context) (uint64, error) {
	var out NonceResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+c.Address().String()+"/nonce", nil, &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

// prepare stamps a fresh nonce and expiry on req and signs it.
func (c *Client) prepare(ctx context.Context, req *signedRequest, action, marketID string, args ...string) error {
	if c.key == nil {
		return errSigningKeyRequired
	}
	nonce, err := c.NextNonce(ctx)
	if err != nil {
		return err
	}
	req.Nonce = nonce
	req.Expires = c.now().Add(c.ttl).Unix()
	return sign(c.key, req, action, marketID, args...)
}

// Deposit bonds amount of principal for the client's account.
func (c *Client) Deposit(ctx context.Context, marketID string, amount, maxPrice *big.Int) (*bond.DepositResult, error) {
	depositor := c.Address().String()
	req := depositRequest{Depositor: depositor, Amount: amountArg(amount), MaxPrice: amountArg(maxPrice)}
	if err := c.prepare(ctx, &req.signedRequest, actionDeposit, marketID, depositor, req.Amount, req.MaxPrice); err != nil {
		return nil, err
	}
	var out DepositResponse
	if err := c.do(ctx, http.MethodPost, marketPath(marketID, "deposit"), req, &out); err != nil {
		return nil, err
	}
	result := &bond.DepositResult{MaturesAt: out.MaturesAt}
	for _, field := range []struct {
		dst **big.Int
		raw string
	}{
		{&result.Value, out.Value},
		{&result.Payout, out.Payout},
		{&result.Fee, out.Fee},
		{&result.Credited, out.Credited},
		{&result.PricePaid, out.PricePaid},
	} {
		v, err := parseResponseAmount(field.raw)
		if err != nil {
			return nil, err
		}
		*field.dst = v
	}
	return result, nil
}

// Redeem releases the vested part of the client's bond.
func (c *Client) Redeem(ctx context.Context, marketID string) (*bond.RedeemResult, error) {
	depositor := c.Address().String()
	req := redeemRequest{Depositor: depositor}
	if err := c.prepare(ctx, &req.signedRequest, actionRedeem, marketID, depositor); err != nil {
		return nil, err
	}
	var out RedeemResponse
	if err := c.do(ctx, http.MethodPost, marketPath(marketID, "redeem"), req, &out); err != nil {
		return nil, err
	}
	paid, err := parseResponseAmount(out.Paid)
	if err != nil {
		return nil, err
	}
	remaining, err := parseResponseAmount(out.Remaining)
	if err != nil {
		return nil, err
	}
	return &bond.RedeemResult{Paid: paid, Remaining: remaining, Closed: out.Closed}, nil
}

func (c *Client) SetBondTerms(ctx context.Context, marketID string, param bond.TermsParameter, value *big.Int) error {
	caller := c.Address().String()
	req := termsRequest{Caller: caller, Parameter: param.String(), Value: amountArg(value)}
	if err := c.prepare(ctx, &req.signedRequest, actionTerms, marketID, caller, req.Parameter, req.Value); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, marketPath(marketID, "terms"), req, nil)
}

func (c *Client) SetAdjustment(ctx context.Context, marketID string, add bool, rate, target *big.Int, buffer uint64) error {
	caller := c.Address().String()
	req := adjustmentRequest{Caller: caller, Add: add, Rate: amountArg(rate), Target: amountArg(target), Buffer: buffer}
	if err := c.prepare(ctx, &req.signedRequest, actionAdjustment, marketID,
		caller, strconv.FormatBool(add), req.Rate, req.Target, strconv.FormatUint(buffer, 10)); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, marketPath(marketID, "adjustment"), req, nil)
}

func (c *Client) ResetSubsidyCounter(ctx context.Context, marketID string) (*big.Int, error) {
	caller := c.Address().String()
	req := callerRequest{Caller: caller}
	if err := c.prepare(ctx, &req.signedRequest, actionSubsidyReset, marketID, caller); err != nil {
		return nil, err
	}
	var out map[string]string
	if err := c.do(ctx, http.MethodPost, marketPath(marketID, "subsidy/reset"), req, &out); err != nil {
		return nil, err
	}
	return parseResponseAmount(out["payout_since_last_subsidy"])
}

func (c *Client) SetFeeTreasury(ctx context.Context, marketID string, feeTreasury crypto.Address) error {
	caller := c.Address().String()
	req := feeTreasuryRequest{Caller: caller, FeeTreasury: feeTreasury.String()}
	if err := c.prepare(ctx, &req.signedRequest, actionFeeTreasury, marketID, caller, req.FeeTreasury); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, marketPath(marketID, "fee-treasury"), req, nil)
}

func parseResponseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("bond api: malformed amount %q", raw)
	}
	return v, nil
}

func marketPath(marketID, route string) string {
	return "/markets/" + url.PathEscape(marketID) + "/" + route
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBytes)).Decode(&failure); err != nil || failure.Error == "" {
			failure.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: failure.Error, RequestID: failure.RequestID}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bond api: decode response: %w", err)
	}
	return nil
}
