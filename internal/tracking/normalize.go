// Package tracking implements the synchronous transaction path: whole-history
// fetch, normalization into the unified schema, filtering and in-memory
// pagination.
package tracking

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// Normalizer maps raw upstream rows into the unified transaction shape.
// Normalize is total: a malformed field degrades to its zero value while the
// hash, addresses and category survive, so a bad row is never dropped.
type Normalizer struct{}

// Normalize converts one raw row of the given category.
func (Normalizer) Normalize(raw domain.RawTransaction, category domain.Category) domain.NormalizedTransaction {
	tx := domain.NormalizedTransaction{
		TxHash:      raw.Hash,
		BlockNumber: parseUint(raw.BlockNumber),
		Timestamp:   parseTimestamp(raw.TimeStamp),
		From:        strings.ToLower(raw.From),
		To:          strings.ToLower(raw.To),
	}

	switch category {
	case domain.CategoryNative:
		tx.Type = domain.TxTypeETH
		tx.Value = formatUnits(raw.Value, 18)
		tx.GasFee = gasFee(raw.GasUsed, raw.GasPrice)

	case domain.CategoryInternal:
		tx.Type = domain.TxTypeInternal
		tx.Value = formatUnits(raw.Value, 18)
		// Internal transfers carry no direct fee.
		tx.GasFee = "0"

	case domain.CategoryToken:
		tx.Type = domain.TxTypeERC20
		tx.TokenAddress = strings.ToLower(raw.ContractAddress)
		tx.TokenSymbol = raw.TokenSymbol
		tx.TokenName = raw.TokenName
		tx.Value = formatUnits(raw.Value, parseDecimals(raw.TokenDecimal))
		tx.GasFee = gasFee(raw.GasUsed, raw.GasPrice)

	case domain.CategoryNFT:
		tx.Type = domain.TxTypeERC721
		tx.TokenAddress = strings.ToLower(raw.ContractAddress)
		tx.TokenSymbol = raw.TokenSymbol
		tx.TokenName = raw.TokenName
		tx.TokenID = raw.TokenID
		tx.Value = "1"
		tx.GasFee = gasFee(raw.GasUsed, raw.GasPrice)
	}

	return tx
}

// NormalizeAll converts every row of a category result map, in category order.
func (n Normalizer) NormalizeAll(byCategory map[domain.Category][]domain.RawTransaction) []domain.NormalizedTransaction {
	var out []domain.NormalizedTransaction
	for _, cat := range domain.Categories() {
		for _, raw := range byCategory[cat] {
			out = append(out, n.Normalize(raw, cat))
		}
	}
	return out
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseTimestamp(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		sec = 0
	}
	return time.Unix(sec, 0).UTC()
}

func parseDecimals(s string) int {
	d, err := strconv.Atoi(s)
	if err != nil || d < 0 || d > 77 {
		return 18
	}
	return d
}

// gasFee computes gasUsed*gasPrice in whole ETH. Either field failing to parse
// yields "0".
func gasFee(gasUsed, gasPrice string) string {
	used, okU := new(big.Int).SetString(gasUsed, 10)
	price, okP := new(big.Int).SetString(gasPrice, 10)
	if !okU || !okP {
		return "0"
	}
	wei := new(big.Int).Mul(used, price)
	return formatBigUnits(wei, 18)
}

// formatUnits renders a base-unit integer string as a whole-unit decimal
// string, trimming trailing zeros ("1000000000000000000" at 18 decimals is
// "1"). A value that fails to parse, or is negative, yields "0".
func formatUnits(value string, decimals int) string {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return "0"
	}
	return formatBigUnits(n, decimals)
}

func formatBigUnits(n *big.Int, decimals int) string {
	if decimals == 0 {
		return n.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(n, scale, new(big.Int))

	fracStr := strings.TrimRight(
		strings.Repeat("0", decimals-len(frac.String()))+frac.String(), "0")
	if frac.Sign() == 0 || fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}
