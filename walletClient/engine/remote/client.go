// Package remote implements engine.Engine over HTTP/JSON.
//
//	POST {serverUrl}/v1/dkg      {"descriptor": {...}, "protocolId": "..."} -> {"handle": "..."}
//	POST {engineUrl}/v1/address  {"handle": "..."}                          -> {"address": "..."}
//	POST {serverUrl}/v1/sign     {"handle", "transaction", "protocolId"}    -> {"result": "..."}
//
// Failures carry {"code": "...", "message": "..."}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

const (
	pathDKG     = "/v1/dkg"
	pathAddress = "/v1/address"
	pathSign    = "/v1/sign"

	maxResponseBytes = 10 * 1024 * 1024

	codeProtocolAborted = "PROTOCOL_ABORTED"
)

type dkgRequest struct {
	Descriptor json.RawMessage `json:"descriptor"`
	ProtocolID string          `json:"protocolId"`
}

type dkgResponse struct {
	Handle string `json:"handle"`
}

type addressRequest struct {
	Handle string `json:"handle"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type signRequest struct {
	Handle      string `json:"handle"`
	Transaction string `json:"transaction"`
	ProtocolID  string `json:"protocolId"`
}

type signResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to a remote signing engine.
type Client struct {
	engineURL  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client. engineURL serves address derivation; key
// generation and signing go to the server URL passed with each call.
func NewClient(engineURL string, requestTimeout time.Duration, logger zerolog.Logger) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		engineURL: strings.TrimRight(engineURL, "/"),
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		logger: logger.With().Str("component", "remote_engine").Logger(),
	}
}

// CreateAccount implements engine.Engine.
func (c *Client) CreateAccount(ctx context.Context, serverURL, descriptorJSON, protocolID string) (string, error) {
	const op = "CreateAccount"
	if !json.Valid([]byte(descriptorJSON)) {
		return "", uerrors.NewEngineError(op, "descriptor is not valid JSON", nil)
	}
	var resp dkgResponse
	req := dkgRequest{Descriptor: json.RawMessage(descriptorJSON), ProtocolID: protocolID}
	if err := c.post(ctx, op, joinURL(serverURL, pathDKG), req, &resp); err != nil {
		return "", err
	}
	if resp.Handle == "" {
		return "", uerrors.NewEngineError(op, "engine returned an empty handle", nil)
	}
	return resp.Handle, nil
}

// GetAddress implements engine.Engine.
func (c *Client) GetAddress(ctx context.Context, handle string) (string, error) {
	const op = "GetAddress"
	var resp addressResponse
	if err := c.post(ctx, op, joinURL(c.engineURL, pathAddress), addressRequest{Handle: handle}, &resp); err != nil {
		return "", err
	}
	if resp.Address == "" {
		return "", uerrors.NewEngineError(op, "engine returned an empty address", nil)
	}
	return resp.Address, nil
}

// SignTransaction implements engine.Engine.
func (c *Client) SignTransaction(ctx context.Context, serverURL, handle, transaction, protocolID string) (string, error) {
	const op = "SignTransaction"
	var resp signResponse
	req := signRequest{Handle: handle, Transaction: transaction, ProtocolID: protocolID}
	if err := c.post(ctx, op, joinURL(serverURL, pathSign), req, &resp); err != nil {
		return "", err
	}
	if resp.Result == "" {
		return "", uerrors.NewEngineError(op, "engine returned an empty result", nil)
	}
	return resp.Result, nil
}

func (c *Client) post(ctx context.Context, op, url string, body, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return uerrors.NewInternalError(op, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return uerrors.NewEngineError(op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uerrors.NewNetworkError(op, "engine unreachable", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return uerrors.NewNetworkError(op, "connection dropped while reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Msg("engine returned failure")
		return classify(op, resp.StatusCode, respBytes)
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return uerrors.NewEngineError(op, "malformed engine response", errors.Wrap(err, "decode"))
	}
	return nil
}

// classify maps a non-2xx response onto the failure taxonomy.
func classify(op string, status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || (er.Code == "" && er.Message == "") {
		er.Message = strings.TrimSpace(string(body))
	}
	if er.Message == "" {
		er.Message = http.StatusText(status)
	}

	var out *uerrors.SignerError
	switch {
	case er.Code == codeProtocolAborted || status == http.StatusConflict:
		out = uerrors.NewProtocolAbortedError(op, er.Message)
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		out = uerrors.NewNetworkError(op, er.Message, nil)
	default:
		out = uerrors.NewEngineError(op, er.Message, nil)
	}
	out.WithContext("http_status", status)
	if er.Code != "" {
		out.WithContext("engine_code", er.Code)
	}
	return out
}

func joinURL(base, path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(base, "/"), path)
}
