package perp

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const accountBalanceABIJSON = `[
  {"inputs":[{"internalType":"address","name":"trader","type":"address"},{"internalType":"address","name":"baseToken","type":"address"}],
   "name":"getTotalPositionSize","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"trader","type":"address"},{"internalType":"address","name":"baseToken","type":"address"}],
   "name":"getTotalPositionValue","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"trader","type":"address"}],
   "name":"getTotalAbsPositionValue","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const clearingHouseABIJSON = `[
  {"inputs":[{"internalType":"address","name":"trader","type":"address"}],
   "name":"getAccountValue","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"components":[
      {"internalType":"address","name":"baseToken","type":"address"},
      {"internalType":"bool","name":"isBaseToQuote","type":"bool"},
      {"internalType":"bool","name":"isExactInput","type":"bool"},
      {"internalType":"uint256","name":"amount","type":"uint256"},
      {"internalType":"uint256","name":"oppositeAmountBound","type":"uint256"},
      {"internalType":"uint256","name":"deadline","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"},
      {"internalType":"bytes32","name":"referralCode","type":"bytes32"}],
    "internalType":"struct IClearingHouse.OpenPositionParams","name":"params","type":"tuple"}],
   "name":"openPosition","outputs":[{"internalType":"uint256","name":"base","type":"uint256"},{"internalType":"uint256","name":"quote","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"}
]`

const clearingHouseConfigABIJSON = `[
  {"inputs":[],"name":"getImRatio","outputs":[{"internalType":"uint24","name":"","type":"uint24"}],"stateMutability":"view","type":"function"}
]`

const vaultABIJSON = `[
  {"inputs":[{"internalType":"address","name":"trader","type":"address"}],
   "name":"getFreeCollateral","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"amountX10_D","type":"uint256"}],
   "name":"deposit","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const quoterABIJSON = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"baseToken","type":"address"},
      {"internalType":"bool","name":"isBaseToQuote","type":"bool"},
      {"internalType":"bool","name":"isExactInput","type":"bool"},
      {"internalType":"uint256","name":"amount","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
    "internalType":"struct Quoter.SwapParams","name":"params","type":"tuple"}],
   "name":"swap","outputs":[{"components":[
      {"internalType":"uint256","name":"deltaAvailableBase","type":"uint256"},
      {"internalType":"uint256","name":"deltaAvailableQuote","type":"uint256"},
      {"internalType":"int256","name":"exchangedPositionSize","type":"int256"},
      {"internalType":"int256","name":"exchangedPositionNotional","type":"int256"},
      {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"}],
    "internalType":"struct Quoter.SwapResponse","name":"resp","type":"tuple"}],
   "stateMutability":"nonpayable","type":"function"}
]`

const erc20ABIJSON = `[
  {"inputs":[{"internalType":"address","name":"account","type":"address"}],
   "name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],
   "name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	accountBalanceABI      = mustABI(accountBalanceABIJSON)
	clearingHouseABI       = mustABI(clearingHouseABIJSON)
	clearingHouseConfigABI = mustABI(clearingHouseConfigABIJSON)
	vaultABI               = mustABI(vaultABIJSON)
	quoterABI              = mustABI(quoterABIJSON)
	erc20ABI               = mustABI(erc20ABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
