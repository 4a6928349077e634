package perp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const sampleMetadata = `{
  "network": "optimism",
  "chainId": 10,
  "contracts": {
    "AccountBalance": {"address": "0xA7f3FC32043757039d5e13d790EE43edBcBa8b7c"},
    "ClearingHouse": {"address": "0x82ac2CE43e33683c58BE4cDc40975E73aA50f459"},
    "ClearingHouseConfig": {"address": "0xA4c817a425D3443BAf610CA614c8B11688a288Fb"},
    "Vault": {"address": "0xAD7b4C162707E0B2b5f6fdDbD3f8538A5fbA0d60"},
    "Quoter": {"address": "0x0B8a7c8a8c0C0BfC4676b5E4Dd6D0b6B1A3E3c42"}
  },
  "externalContracts": {"USDC": "0x7F5c764cBc14f9669B88837ca1490cCa17c31607"},
  "pools": [
    {"address": "0x36B18618c4131D8564A714fb6b4D2B1EdADc0042", "baseAddress": "0x8C835DFaA34e2AE61775e80EE29E2c724c6AE2BB", "baseSymbol": "vETH", "quoteSymbol": "vUSD"},
    {"address": "0xC64f9436f8Ca50CDCC096105C62DaD52FAEb1f2e", "baseAddress": "0x86f1e0420c26a858fc203A3645dD1A36868F18e5", "baseSymbol": "vBTC", "quoteSymbol": "vUSD"}
  ]
}`

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(sampleMetadata))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if md.ChainID != 10 || md.Network != "optimism" {
		t.Fatalf("unexpected network %s %d", md.Network, md.ChainID)
	}
	if md.Contracts.ClearingHouse != common.HexToAddress("0x82ac2CE43e33683c58BE4cDc40975E73aA50f459") {
		t.Fatalf("unexpected clearing house %s", md.Contracts.ClearingHouse)
	}
	if md.Contracts.USDC != common.HexToAddress("0x7F5c764cBc14f9669B88837ca1490cCa17c31607") {
		t.Fatalf("unexpected usdc %s", md.Contracts.USDC)
	}
	if len(md.Pools) != 2 || md.Pools[0].BaseSymbol != "vETH" {
		t.Fatalf("unexpected pools %+v", md.Pools)
	}
}

func TestParseMetadataMissingContracts(t *testing.T) {
	_, err := ParseMetadata([]byte(`{"contracts": {"Vault": {"address": "0x01"}}, "pools": []}`))
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, name := range []string{"AccountBalance", "ClearingHouse", "Quoter", "USDC"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got %v", name, err)
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleMetadata)
	}))
	defer srv.Close()
	md, err := LoadMetadata(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(md.Pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(md.Pools))
	}
}

func TestLoadMetadataHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()
	if _, err := LoadMetadata(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatalf("expected http error")
	}
}
