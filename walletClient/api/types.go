package api

// CreateAccountRequest is the body of POST /api/v1/accounts.
type CreateAccountRequest struct {
	WalletID   string `json:"walletId"`
	ProtocolID string `json:"protocolId"`
	SelfID     string `json:"selfId"`
}

// CreateAccountResponse carries the new signer handle.
type CreateAccountResponse struct {
	Handle string `json:"handle"`
}

// AddressRequest is the body of POST /api/v1/address.
type AddressRequest struct {
	Handle string `json:"handle"`
}

// AddressResponse carries the derived address.
type AddressResponse struct {
	Address string `json:"address"`
}

// SendTransactionRequest is the body of POST /api/v1/transactions.
type SendTransactionRequest struct {
	ProtocolID  string `json:"protocolId"`
	Handle      string `json:"handle"`
	Transaction string `json:"transaction"`
}

// SendTransactionResponse carries the engine's signing result.
type SendTransactionResponse struct {
	Result string `json:"result"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
