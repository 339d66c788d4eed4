package domain

type Chain string

const (
	ChainEthereum Chain = "eip155"
	ChainSolana   Chain = "solana"
)

type WalletInterface string

const (
	WalletInterfaceEthereum      WalletInterface = "ethereum"
	WalletInterfaceSolana        WalletInterface = "solana"
	WalletInterfaceWalletConnect WalletInterface = "walletconnect"
)

type WalletProvider struct {
	InterfaceType      WalletInterface
	ChainNamespace     Chain
	ConnectedAddresses []string
}

func (p WalletProvider) Connected() bool {
	return len(p.ConnectedAddresses) > 0
}

// ChainContext pins a wallet stamp to one chain and, optionally, one address.
type ChainContext struct {
	Chain   Chain
	Address string
}

// chainPreference is the order used when more than one chain could stamp.
var chainPreference = []Chain{ChainEthereum, ChainSolana}

// DefaultChain picks the chain used when a caller does not name one. Ethereum
// wins over Solana when both have a connected provider.
func DefaultChain(providers []WalletProvider) (Chain, bool) {
	for _, chain := range chainPreference {
		for _, provider := range providers {
			if provider.ChainNamespace == chain && provider.Connected() {
				return chain, true
			}
		}
	}

	return "", false
}

// ProviderForChain returns the first connected provider serving chain.
func ProviderForChain(providers []WalletProvider, chain Chain) (WalletProvider, bool) {
	for _, provider := range providers {
		if provider.ChainNamespace == chain && provider.Connected() {
			return provider, true
		}
	}

	return WalletProvider{}, false
}
