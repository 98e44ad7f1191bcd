package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://127.0.0.1:8899", "localnet"},
		{"http://localhost:8899", "localnet"},
		{"https://api.devnet.solana.com", "devnet"},
		{"https://api.testnet.solana.com", "testnet"},
		{"https://api.mainnet-beta.solana.com", "mainnet"},
		{"https://mainnet.helius-rpc.com/?api-key=secret", "mainnet"},
		{"https://rpc.ankr.com/solana", "rpc.ankr.com"},
		{"not a url", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := EndpointLabel(tt.url)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "secret")
		})
	}
}

func TestNewRPCClient(t *testing.T) {
	client := NewRPCClient("http://127.0.0.1:8899")
	assert.NotNil(t, client)
}
