// Package usermgmt is the client for the user-management service that owns
// wallet records: which wallets a user has and which protocol id a new key
// generation or signing round should use.
//
//	POST {base}/users/{userId}/wallets                          -> {"walletId", "protocolId"}
//	GET  {base}/users/{userId}/wallets                          -> {"wallets": [{"id", "address"}]}
//	POST {base}/users/{userId}/wallets/{walletId}/messages/sign {"message"} -> {"protocolId"}
package usermgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// Session rejection bodies returned by the service.
const (
	UserNotMatching      = "USER_NOT_MATCHING"
	UserNotAuthenticated = "USER_NOT_AUTHENTICATED"
)

const maxResponseBytes = 1 << 20

// WalletInfo is the result of CreateWallet.
type WalletInfo struct {
	WalletID   string `json:"walletId"`
	ProtocolID string `json:"protocolId"`
}

// Wallet is one entry of GetWallets.
type Wallet struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type walletsResponse struct {
	Wallets []Wallet `json:"wallets"`
}

type preSignRequest struct {
	Message string `json:"message"`
}

// PreSignInfo is the result of PreSignMessage.
type PreSignInfo struct {
	ProtocolID string `json:"protocolId"`
}

// Client talks to the user-management service. Session cookies are kept
// in a jar so a reauthentication performed through the same client is
// picked up by the retried request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *uerrors.RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a client. A nil retry uses errors.DefaultRetryConfig.
func NewClient(baseURL string, timeout time.Duration, retry *uerrors.RetryConfig, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, uerrors.NewConfigError("user management url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retry == nil {
		retry = uerrors.DefaultRetryConfig()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		retry:  retry,
		logger: logger.With().Str("component", "usermgmt_client").Logger(),
	}, nil
}

// HTTPClient exposes the underlying client so a login flow can share its
// cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// CreateWallet registers a new wallet for userID and returns the protocol
// id of its key generation round.
func (c *Client) CreateWallet(ctx context.Context, userID string) (*WalletInfo, error) {
	const op = "usermgmt.CreateWallet"
	if userID == "" {
		return nil, uerrors.NewValidationError(op, "user id is required")
	}

	var info WalletInfo
	if err := c.do(ctx, op, http.MethodPost, c.walletsPath(userID), nil, &info); err != nil {
		return nil, err
	}
	if info.WalletID == "" || info.ProtocolID == "" {
		return nil, uerrors.NewInternalError(op, "response is missing walletId or protocolId", nil)
	}
	return &info, nil
}

// GetWallets lists the wallets of userID.
func (c *Client) GetWallets(ctx context.Context, userID string) ([]Wallet, error) {
	const op = "usermgmt.GetWallets"
	if userID == "" {
		return nil, uerrors.NewValidationError(op, "user id is required")
	}

	var resp walletsResponse
	if err := c.do(ctx, op, http.MethodGet, c.walletsPath(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// FindWallet returns the id of the wallet of userID whose address matches,
// ignoring case. ok is false if none does.
func (c *Client) FindWallet(ctx context.Context, userID, address string) (walletID string, ok bool, err error) {
	wallets, err := c.GetWallets(ctx, userID)
	if err != nil {
		return "", false, err
	}
	for _, w := range wallets {
		if w.Address != "" && strings.EqualFold(w.Address, address) {
			return w.ID, true, nil
		}
	}
	return "", false, nil
}

// PreSignMessage announces that walletID is about to sign message and
// returns the protocol id of the signing round.
func (c *Client) PreSignMessage(ctx context.Context, userID, walletID, message string) (*PreSignInfo, error) {
	const op = "usermgmt.PreSignMessage"
	if userID == "" || walletID == "" {
		return nil, uerrors.NewValidationError(op, "user id and wallet id are required")
	}

	path := fmt.Sprintf("%s/%s/messages/sign", c.walletsPath(userID), url.PathEscape(walletID))
	var info PreSignInfo
	if err := c.do(ctx, op, http.MethodPost, path, preSignRequest{Message: message}, &info); err != nil {
		return nil, err
	}
	if info.ProtocolID == "" {
		return nil, uerrors.NewInternalError(op, "response is missing protocolId", nil)
	}
	return &info, nil
}

func (c *Client) walletsPath(userID string) string {
	return fmt.Sprintf("/users/%s/wallets", url.PathEscape(userID))
}

// do performs one request, retrying transport failures.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return uerrors.NewInternalError(op, "failed to marshal request", err)
		}
	}

	retry := &uerrors.RetryOperation{
		Name:   op,
		Config: c.retry,
		Fn: func() error {
			return c.once(ctx, op, method, path, payload, out)
		},
		OnRetry: func(attempt int, err error) {
			c.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("retrying user management request")
		},
	}
	return retry.Execute(ctx)
}

func (c *Client) once(ctx context.Context, op, method, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return uerrors.NewInternalError(op, "failed to create request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uerrors.NewNetworkError(op, "user management service unreachable", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return uerrors.NewNetworkError(op, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(op, resp.StatusCode, respBytes)
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return uerrors.NewInternalError(op, "malformed response", err)
	}
	return nil
}

func classify(op string, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	var quoted string
	if json.Unmarshal(body, &quoted) == nil {
		text = quoted
	}

	var out *uerrors.SignerError
	switch {
	case text == UserNotMatching || text == UserNotAuthenticated || status == http.StatusUnauthorized:
		out = uerrors.NewAuthError(op, text)
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		out = uerrors.NewNetworkError(op, fmt.Sprintf("service unavailable: %s", text), nil)
	case status >= 400 && status < 500:
		out = uerrors.NewValidationError(op, fmt.Sprintf("request rejected: %s", text))
	default:
		out = uerrors.NewInternalError(op, fmt.Sprintf("service error: %s", text), nil)
	}
	return out.WithContext("http_status", status)
}
