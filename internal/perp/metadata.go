package perp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"perp-ftx-arb/internal/venue"

	"github.com/ethereum/go-ethereum/common"
)

type contractEntry struct {
	Address string `json:"address"`
}

type poolEntry struct {
	Address     string `json:"address"`
	BaseAddress string `json:"baseAddress"`
	BaseSymbol  string `json:"baseSymbol"`
	QuoteSymbol string `json:"quoteSymbol"`
}

type metadataFile struct {
	Network           string                   `json:"network"`
	ChainID           int64                    `json:"chainId"`
	Contracts         map[string]contractEntry `json:"contracts"`
	ExternalContracts map[string]string        `json:"externalContracts"`
	Pools             []poolEntry              `json:"pools"`
}

// Contracts are the addresses the client talks to.
type Contracts struct {
	AccountBalance      common.Address
	ClearingHouse       common.Address
	ClearingHouseConfig common.Address
	Vault               common.Address
	Quoter              common.Address
	USDC                common.Address
}

type Metadata struct {
	Network   string
	ChainID   int64
	Contracts Contracts
	Pools     []venue.Pool
}

func ParseMetadata(raw []byte) (*Metadata, error) {
	var file metadataFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode perp metadata: %w", err)
	}
	var errs []error
	contract := func(name string) common.Address {
		entry, ok := file.Contracts[name]
		if !ok || !common.IsHexAddress(entry.Address) {
			errs = append(errs, fmt.Errorf("contract %s missing", name))
			return common.Address{}
		}
		return common.HexToAddress(entry.Address)
	}
	md := &Metadata{
		Network: file.Network,
		ChainID: file.ChainID,
		Contracts: Contracts{
			AccountBalance:      contract("AccountBalance"),
			ClearingHouse:       contract("ClearingHouse"),
			ClearingHouseConfig: contract("ClearingHouseConfig"),
			Vault:               contract("Vault"),
			Quoter:              contract("Quoter"),
		},
	}
	usdc := file.ExternalContracts["USDC"]
	if !common.IsHexAddress(usdc) {
		errs = append(errs, errors.New("external contract USDC missing"))
	} else {
		md.Contracts.USDC = common.HexToAddress(usdc)
	}
	for _, p := range file.Pools {
		if !common.IsHexAddress(p.Address) || !common.IsHexAddress(p.BaseAddress) || p.BaseSymbol == "" {
			errs = append(errs, fmt.Errorf("pool %q is incomplete", p.BaseSymbol))
			continue
		}
		md.Pools = append(md.Pools, venue.Pool{
			Address:     common.HexToAddress(p.Address),
			BaseAddress: common.HexToAddress(p.BaseAddress),
			BaseSymbol:  p.BaseSymbol,
			QuoteSymbol: p.QuoteSymbol,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return md, nil
}

func LoadMetadata(ctx context.Context, client *http.Client, url string) (*Metadata, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch perp metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch perp metadata: http %d: %s", resp.StatusCode, string(body))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	return ParseMetadata(raw)
}
