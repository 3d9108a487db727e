package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

const signatureLength = crypto.SignatureLength

// SignRawTransaction signs a legacy transaction sent from the active
// account and returns its raw encoding. Transactions with a zero gas price
// are refused.
func (s *Signer) SignRawTransaction(ctx context.Context, tx *types.Transaction, from common.Address, chainID *big.Int) ([]byte, error) {
	const op = "signer.SignRawTransaction"

	account, ok := s.activeAccount()
	if !ok {
		return nil, uerrors.NewValidationError(op, "cannot sign before key generation or initialization")
	}
	if exists, err := s.keyshares.Exists(account.Hex()); err != nil || !exists {
		return nil, uerrors.NewValidationError(op, "cannot sign before key generation or initialization")
	}
	if from != account {
		return nil, uerrors.NewValidationError(op, fmt.Sprintf("signer %s cannot sign tx with from %s", account.Hex(), from.Hex()))
	}
	if tx.Type() != types.LegacyTxType {
		return nil, uerrors.NewValidationError(op, fmt.Sprintf("unsupported transaction type %d", tx.Type()))
	}
	if tx.GasPrice() == nil || tx.GasPrice().Sign() == 0 {
		return nil, uerrors.NewValidationError(op, "refusing to sign a transaction with zero gas price")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, uerrors.NewValidationError(op, "chain id is required")
	}

	// The engine receives the EIP-155 digest, never the RLP preimage, so
	// every payload the signer sends is a 32-byte hash.
	signer := types.NewEIP155Signer(chainID)
	hash := signer.Hash(tx)

	sig, err := s.thresholdSign(ctx, account, hexutil.Encode(hash[:]), hash[:])
	if err != nil {
		return nil, err
	}
	sig, err = recoveryForm(op, sig)
	if err != nil {
		return nil, err
	}

	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, uerrors.NewEngineError(op, "engine signature rejected", err)
	}
	sender, err := types.Sender(signer, signed)
	if err != nil || sender != account {
		return nil, uerrors.NewEngineError(op, "engine signature does not match the account", err)
	}
	return signed.MarshalBinary()
}

// SignPersonalMessage signs data with the EIP-191 personal message prefix.
// The signature is R || S || V with V in {27, 28}.
func (s *Signer) SignPersonalMessage(ctx context.Context, data []byte) ([]byte, error) {
	account, ok := s.activeAccount()
	if !ok {
		return nil, uerrors.NewValidationError("signer.SignPersonalMessage", "invoked without an account")
	}
	return s.signHash(ctx, accounts.TextHash(data), account)
}

// SignTypedData signs the EIP-712 hash of typedData for the active account.
func (s *Signer) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	const op = "signer.SignTypedData"
	account, ok := s.activeAccount()
	if !ok {
		return nil, uerrors.NewValidationError(op, "invoked without an account")
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, uerrors.NewValidationError(op, "cannot hash typed data: "+err.Error())
	}
	return s.signHash(ctx, hash, account)
}

func (s *Signer) signHash(ctx context.Context, hash []byte, address common.Address) ([]byte, error) {
	const op = "signer.signHash"

	sig, err := s.thresholdSign(ctx, address, hexutil.Encode(hash), hash)
	if err != nil {
		return nil, err
	}
	sig, err = recoveryForm(op, sig)
	if err != nil {
		return nil, err
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil || crypto.PubkeyToAddress(*pub) != address {
		return nil, uerrors.NewEngineError(op, "engine signature does not match the account", err)
	}

	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// recoveryForm checks the engine signature length and brings V into {0, 1}.
func recoveryForm(op string, sig []byte) ([]byte, error) {
	if len(sig) != signatureLength {
		return nil, uerrors.NewEngineError(op, fmt.Sprintf("engine returned a %d-byte signature", len(sig)), nil)
	}
	out := make([]byte, signatureLength)
	copy(out, sig)
	if v := out[crypto.RecoveryIDOffset]; v >= 27 {
		out[crypto.RecoveryIDOffset] = v - 27
	}
	if out[crypto.RecoveryIDOffset] > 1 {
		return nil, uerrors.NewEngineError(op, "engine signature has an invalid recovery id", nil)
	}
	return out, nil
}
