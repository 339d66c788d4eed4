package evm

import (
	"context"
	"sync"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// userRejectedCode is the EIP-1193 error code for a declined request.
const userRejectedCode = 4001

// RPCWallet signs through an EIP-1193 style JSON-RPC endpoint, such as a
// local signer or a wallet bridge.
type RPCWallet struct {
	client *rpc.Client

	mu       sync.RWMutex
	accounts []string
}

var _ ports.EthereumWallet = (*RPCWallet)(nil)

// DialRPCWallet connects to endpoint and loads the connected accounts.
func DialRPCWallet(ctx context.Context, endpoint string) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dial wallet rpc %s", endpoint)
	}

	w := NewRPCWallet(client)
	if err := w.Refresh(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return w, nil
}

func NewRPCWallet(client *rpc.Client) *RPCWallet {
	return &RPCWallet{client: client}
}

// Refresh reloads the connected accounts with eth_accounts.
func (w *RPCWallet) Refresh(ctx context.Context) error {
	var accounts []string
	if err := w.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return errors.Wrap(err, "eth_accounts")
	}

	w.mu.Lock()
	w.accounts = accounts
	w.mu.Unlock()

	return nil
}

func (w *RPCWallet) Provider() domain.WalletProvider {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return domain.WalletProvider{
		InterfaceType:      domain.WalletInterfaceEthereum,
		ChainNamespace:     domain.ChainEthereum,
		ConnectedAddresses: append([]string(nil), w.accounts...),
	}
}

func (w *RPCWallet) PersonalSign(ctx context.Context, address string, message []byte) ([]byte, error) {
	var sig hexutil.Bytes
	err := w.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(message), address)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
			return nil, errors.Wrap(domain.ErrWalletSignRejected, rpcErr.Error())
		}
		return nil, errors.Wrap(err, "personal_sign")
	}

	return sig, nil
}

func (w *RPCWallet) Close() {
	w.client.Close()
}
