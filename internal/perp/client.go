package perp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"perp-ftx-arb/internal/venue"
	"perp-ftx-arb/internal/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ venue.PerpVenue = (*Client)(nil)

// Backend is the JSON-RPC surface the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

type Options struct {
	RPCTimeout time.Duration
	TxTimeout  time.Duration
	// percent added to the gas estimate for the submitted limit
	GasLimitBufferPct uint64
	// settlement token decimals used by free collateral
	CollateralDecimals int32
}

type Client struct {
	backend   Backend
	contracts Contracts
	signer    *wallet.Signer
	nonces    *wallet.NonceManager
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

func New(backend Backend, contracts Contracts, signer *wallet.Signer, nonces *wallet.NonceManager, opts Options, log *zap.Logger) *Client {
	if opts.RPCTimeout <= 0 {
		opts.RPCTimeout = 10 * time.Second
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 2 * time.Minute
	}
	if opts.GasLimitBufferPct == 0 {
		opts.GasLimitBufferPct = 20
	}
	if opts.CollateralDecimals == 0 {
		opts.CollateralDecimals = 6
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		backend:   backend,
		contracts: contracts,
		signer:    signer,
		nonces:    nonces,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

func (c *Client) TotalPositionSize(ctx context.Context, trader, baseToken common.Address) (decimal.Decimal, error) {
	v, err := c.callBig(ctx, accountBalanceABI, c.contracts.AccountBalance, "getTotalPositionSize", trader, baseToken)
	if err != nil {
		return decimal.Zero, err
	}
	return fromWei(v, tokenDecimals), nil
}

func (c *Client) TotalPositionValue(ctx context.Context, trader, baseToken common.Address) (decimal.Decimal, error) {
	v, err := c.callBig(ctx, accountBalanceABI, c.contracts.AccountBalance, "getTotalPositionValue", trader, baseToken)
	if err != nil {
		return decimal.Zero, err
	}
	return fromWei(v, tokenDecimals), nil
}

// MarginRatio is account value over total absolute position value. It is nil
// when the trader holds no positions.
func (c *Client) MarginRatio(ctx context.Context, trader common.Address) (*decimal.Decimal, error) {
	abs, err := c.callBig(ctx, accountBalanceABI, c.contracts.AccountBalance, "getTotalAbsPositionValue", trader)
	if err != nil {
		return nil, err
	}
	if abs.Sign() == 0 {
		return nil, nil
	}
	accountValue, err := c.callBig(ctx, clearingHouseABI, c.contracts.ClearingHouse, "getAccountValue", trader)
	if err != nil {
		return nil, err
	}
	ratio := fromWei(accountValue, tokenDecimals).Div(fromWei(abs, tokenDecimals))
	return &ratio, nil
}

// BuyingPower is free collateral scaled by the initial margin ratio.
func (c *Client) BuyingPower(ctx context.Context, trader common.Address) (decimal.Decimal, error) {
	free, err := c.callBig(ctx, vaultABI, c.contracts.Vault, "getFreeCollateral", trader)
	if err != nil {
		return decimal.Zero, err
	}
	imRatio, err := c.callBig(ctx, clearingHouseConfigABI, c.contracts.ClearingHouseConfig, "getImRatio")
	if err != nil {
		return decimal.Zero, err
	}
	if imRatio.Sign() == 0 {
		return decimal.Zero, errors.New("initial margin ratio is zero")
	}
	return fromWei(free, c.opts.CollateralDecimals).Div(fromWei(imRatio, ratioDecimals)), nil
}

type swapParams struct {
	BaseToken         common.Address
	IsBaseToQuote     bool
	IsExactInput      bool
	Amount            *big.Int
	SqrtPriceLimitX96 *big.Int
}

type swapResponse struct {
	DeltaAvailableBase        *big.Int
	DeltaAvailableQuote       *big.Int
	ExchangedPositionSize     *big.Int
	ExchangedPositionNotional *big.Int
	SqrtPriceX96              *big.Int
}

func (c *Client) Quote(ctx context.Context, baseToken common.Address, side venue.Side, amountType venue.AmountType, amount, sqrtPriceLimitX96 decimal.Decimal) (venue.Quote, error) {
	amountWei, err := toWei(amount, tokenDecimals)
	if err != nil {
		return venue.Quote{}, err
	}
	isBaseToQuote, isExactInput := direction(side, amountType)
	params := swapParams{
		BaseToken:         baseToken,
		IsBaseToQuote:     isBaseToQuote,
		IsExactInput:      isExactInput,
		Amount:            amountWei,
		SqrtPriceLimitX96: sqrtPriceLimitX96.BigInt(),
	}
	vals, err := c.call(ctx, quoterABI, c.contracts.Quoter, "swap", params)
	if err != nil {
		return venue.Quote{}, err
	}
	if len(vals) != 1 {
		return venue.Quote{}, fmt.Errorf("quoter swap: unexpected output length %d", len(vals))
	}
	resp, ok := abi.ConvertType(vals[0], new(swapResponse)).(*swapResponse)
	if !ok {
		return venue.Quote{}, fmt.Errorf("quoter swap: unexpected output %T", vals[0])
	}
	return venue.Quote{
		DeltaAvailableBase:  fromWei(resp.DeltaAvailableBase, tokenDecimals),
		DeltaAvailableQuote: fromWei(resp.DeltaAvailableQuote, tokenDecimals),
	}, nil
}

type openPositionParams struct {
	BaseToken           common.Address
	IsBaseToQuote       bool
	IsExactInput        bool
	Amount              *big.Int
	OppositeAmountBound *big.Int
	Deadline            *big.Int
	SqrtPriceLimitX96   *big.Int
	ReferralCode        [32]byte
}

func (c *Client) openPositionData(req venue.OpenPositionRequest) ([]byte, error) {
	amount, err := toWei(req.Amount, tokenDecimals)
	if err != nil {
		return nil, err
	}
	bound := big.NewInt(0)
	if req.Limit != nil {
		if bound, err = toWei(*req.Limit, tokenDecimals); err != nil {
			return nil, err
		}
	}
	referral, err := referralBytes(req.ReferralCode)
	if err != nil {
		return nil, err
	}
	isBaseToQuote, isExactInput := direction(req.Side, req.AmountType)
	return clearingHouseABI.Pack("openPosition", openPositionParams{
		BaseToken:           req.BaseToken,
		IsBaseToQuote:       isBaseToQuote,
		IsExactInput:        isExactInput,
		Amount:              amount,
		OppositeAmountBound: bound,
		Deadline:            big.NewInt(c.now().Add(c.opts.TxTimeout).Unix()),
		SqrtPriceLimitX96:   big.NewInt(0),
		ReferralCode:        referral,
	})
}

type gasQuote struct {
	gas    uint64
	price  *big.Int
	feeETH decimal.Decimal
}

func (c *Client) estimate(ctx context.Context, data []byte) (gasQuote, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()
	to := c.contracts.ClearingHouse
	gas, err := c.backend.EstimateGas(callCtx, ethereum.CallMsg{From: c.signer.Address(), To: &to, Data: data})
	if err != nil {
		return gasQuote{}, fmt.Errorf("estimate gas: %w", err)
	}
	price, err := c.backend.SuggestGasPrice(callCtx)
	if err != nil {
		return gasQuote{}, fmt.Errorf("suggest gas price: %w", err)
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gas), price)
	return gasQuote{gas: gas, price: price, feeETH: fromWei(fee, ethDecimals)}, nil
}

func (c *Client) EstimateOpenPositionGasFee(ctx context.Context, req venue.OpenPositionRequest) (decimal.Decimal, error) {
	data, err := c.openPositionData(req)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := c.estimate(ctx, data)
	if err != nil {
		return decimal.Zero, err
	}
	return q.feeETH, nil
}

// OpenPosition checks the optional gas ceiling, submits the position change
// and waits for it to be mined.
func (c *Client) OpenPosition(ctx context.Context, req venue.OpenPositionRequest) (venue.TxResult, error) {
	data, err := c.openPositionData(req)
	if err != nil {
		return venue.TxResult{}, err
	}
	q, err := c.estimate(ctx, data)
	if err != nil {
		return venue.TxResult{}, err
	}
	if req.MaxGasFeeETH != nil && q.feeETH.GreaterThan(*req.MaxGasFeeETH) {
		return venue.TxResult{}, fmt.Errorf("%w: estimated %s eth, max %s eth", venue.ErrGasFeeTooHigh, q.feeETH, req.MaxGasFeeETH)
	}
	receipt, err := c.transact(ctx, c.contracts.ClearingHouse, data, q)
	if err != nil {
		return venue.TxResult{}, err
	}
	return txResult(receipt, q.price), nil
}

// DepositIdle moves the trader's whole USDC wallet balance into the vault.
// It returns the deposited amount, zero when there was nothing to deposit.
func (c *Client) DepositIdle(ctx context.Context) (decimal.Decimal, error) {
	trader := c.signer.Address()
	balance, err := c.callBig(ctx, erc20ABI, c.contracts.USDC, "balanceOf", trader)
	if err != nil {
		return decimal.Zero, err
	}
	decimals, err := c.call(ctx, erc20ABI, c.contracts.USDC, "decimals")
	if err != nil {
		return decimal.Zero, err
	}
	dec, ok := decimals[0].(uint8)
	if !ok {
		return decimal.Zero, fmt.Errorf("usdc decimals: unexpected type %T", decimals[0])
	}
	amount := fromWei(balance, int32(dec))
	c.log.Info("usdc balance", zap.String("event", "CheckUSDCBalance"), zap.String("balance", amount.String()))
	if balance.Sign() <= 0 {
		return decimal.Zero, nil
	}
	approve, err := erc20ABI.Pack("approve", c.contracts.Vault, balance)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.send(ctx, c.contracts.USDC, approve); err != nil {
		return decimal.Zero, fmt.Errorf("approve usdc: %w", err)
	}
	deposit, err := vaultABI.Pack("deposit", c.contracts.USDC, balance)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.send(ctx, c.contracts.Vault, deposit); err != nil {
		return decimal.Zero, fmt.Errorf("deposit usdc: %w", err)
	}
	return amount, nil
}

func (c *Client) send(ctx context.Context, to common.Address, data []byte) error {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()
	gas, err := c.backend.EstimateGas(callCtx, ethereum.CallMsg{From: c.signer.Address(), To: &to, Data: data})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}
	price, err := c.backend.SuggestGasPrice(callCtx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}
	_, err = c.transact(ctx, to, data, gasQuote{gas: gas, price: price})
	return err
}

func (c *Client) transact(ctx context.Context, to common.Address, data []byte, q gasQuote) (*types.Receipt, error) {
	gasLimit := q.gas + q.gas*c.opts.GasLimitBufferPct/100
	var signed *types.Transaction
	err := c.nonces.Use(ctx, func(nonce uint64) error {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: q.price,
			Gas:      gasLimit,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		})
		var err error
		signed, err = c.signer.SignTx(tx)
		if err != nil {
			return err
		}
		sendCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
		defer cancel()
		return c.backend.SendTransaction(sendCtx, signed)
	})
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	c.log.Info("transaction sent", zap.String("tx", signed.Hash().Hex()), zap.Uint64("nonce", signed.Nonce()))
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.TxTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}

func txResult(receipt *types.Receipt, gasPrice *big.Int) venue.TxResult {
	price := gasPrice
	if receipt.EffectiveGasPrice != nil && receipt.EffectiveGasPrice.Sign() > 0 {
		price = receipt.EffectiveGasPrice
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	return venue.TxResult{
		Hash:      receipt.TxHash.Hex(),
		GasUsed:   receipt.GasUsed,
		GasFeeETH: fromWei(fee, ethDecimals),
	}
}

// direction maps a side and amount type onto the swap flags. Shorts sell
// base for quote; input is exact when the amount is in the token paid in.
func direction(side venue.Side, amountType venue.AmountType) (isBaseToQuote, isExactInput bool) {
	isBaseToQuote = side == venue.SideShort
	isExactInput = (side == venue.SideLong && amountType == venue.AmountQuote) ||
		(side == venue.SideShort && amountType == venue.AmountBase)
	return isBaseToQuote, isExactInput
}

func (c *Client) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()
	out, err := c.backend.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", method, err)
	}
	return vals, nil
}

func (c *Client) callBig(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	vals, err := c.call(ctx, contractABI, to, method, args...)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, vals[0])
	}
	return v, nil
}
