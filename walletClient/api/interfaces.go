package api

import "github.com/pushchain/push-wallet-signer/walletClient/dispatcher"

// WalletCoordinator defines the wallet operations served by the API.
type WalletCoordinator interface {
	CreateAccount(walletID, protocolID, selfID string) (*dispatcher.Future, error)
	GetAddress(handle string) (*dispatcher.Future, error)
	SendTransaction(protocolID, handle, transaction string) (*dispatcher.Future, error)
}
