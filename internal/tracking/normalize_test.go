package tracking

import (
	"testing"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

func TestNormalizeNative(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		BlockNumber: "18000000",
		TimeStamp:   "1693526400",
		Hash:        "0xabc",
		From:        "0xAAAA",
		To:          "0xBBBB",
		Value:       "1000000000000000000",
		GasUsed:     "21000",
		GasPrice:    "50000000000",
	}, domain.CategoryNative)

	if tx.Type != domain.TxTypeETH {
		t.Errorf("type = %s, want ETH", tx.Type)
	}
	if tx.Value != "1" {
		t.Errorf("value = %s, want 1", tx.Value)
	}
	if tx.GasFee != "0.00105" {
		t.Errorf("gas fee = %s, want 0.00105", tx.GasFee)
	}
	if tx.BlockNumber != 18000000 {
		t.Errorf("block = %d, want 18000000", tx.BlockNumber)
	}
	if tx.From != "0xaaaa" || tx.To != "0xbbbb" {
		t.Errorf("addresses not lowercased: %s -> %s", tx.From, tx.To)
	}
	want := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	if !tx.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", tx.Timestamp, want)
	}
}

func TestNormalizeInternalHasNoFee(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		Hash:  "0xdef",
		Value: "500000000000000000",
	}, domain.CategoryInternal)

	if tx.Type != domain.TxTypeInternal {
		t.Errorf("type = %s, want Internal", tx.Type)
	}
	if tx.Value != "0.5" {
		t.Errorf("value = %s, want 0.5", tx.Value)
	}
	if tx.GasFee != "0" {
		t.Errorf("gas fee = %s, want 0", tx.GasFee)
	}
}

func TestNormalizeToken(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		Hash:            "0x123",
		Value:           "2500000",
		TokenDecimal:    "6",
		TokenSymbol:     "USDC",
		TokenName:       "USD Coin",
		ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	}, domain.CategoryToken)

	if tx.Type != domain.TxTypeERC20 {
		t.Errorf("type = %s, want ERC-20", tx.Type)
	}
	if tx.Value != "2.5" {
		t.Errorf("value = %s, want 2.5", tx.Value)
	}
	if tx.TokenAddress != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Errorf("token address not lowercased: %s", tx.TokenAddress)
	}
	if tx.TokenSymbol != "USDC" {
		t.Errorf("symbol = %s", tx.TokenSymbol)
	}
}

func TestNormalizeNFT(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		Hash:     "0x456",
		TokenID:  "7421",
		GasUsed:  "100000",
		GasPrice: "20000000000",
	}, domain.CategoryNFT)

	if tx.Type != domain.TxTypeERC721 {
		t.Errorf("type = %s, want ERC-721", tx.Type)
	}
	if tx.Value != "1" {
		t.Errorf("value = %s, want 1", tx.Value)
	}
	if tx.TokenID != "7421" {
		t.Errorf("token id = %s", tx.TokenID)
	}
	if tx.GasFee != "0.002" {
		t.Errorf("gas fee = %s, want 0.002", tx.GasFee)
	}
}

func TestNormalizeMalformedFieldsDegradeToZero(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		BlockNumber: "not-a-number",
		TimeStamp:   "garbage",
		Hash:        "0xdead",
		From:        "0xFROM",
		To:          "0xTO",
		Value:       "bogus",
		GasUsed:     "x",
		GasPrice:    "y",
	}, domain.CategoryNative)

	if tx.TxHash != "0xdead" {
		t.Errorf("hash must survive, got %s", tx.TxHash)
	}
	if tx.BlockNumber != 0 {
		t.Errorf("block = %d, want 0", tx.BlockNumber)
	}
	if tx.Value != "0" {
		t.Errorf("value = %s, want 0", tx.Value)
	}
	if tx.GasFee != "0" {
		t.Errorf("gas fee = %s, want 0", tx.GasFee)
	}
	if !tx.Timestamp.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("timestamp = %v", tx.Timestamp)
	}
}

func TestNormalizeTokenBadDecimalsDefaultTo18(t *testing.T) {
	var n Normalizer
	tx := n.Normalize(domain.RawTransaction{
		Hash:         "0x789",
		Value:        "1000000000000000000",
		TokenDecimal: "",
	}, domain.CategoryToken)

	if tx.Value != "1" {
		t.Errorf("value = %s, want 1", tx.Value)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     string
	}{
		{"1000000000000000000", 18, "1"},
		{"1050000000000000000", 18, "1.05"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0"},
		{"123", 0, "123"},
		{"2500000", 6, "2.5"},
		{"-5", 18, "0"},
		{"", 18, "0"},
	}
	for _, c := range cases {
		if got := formatUnits(c.value, c.decimals); got != c.want {
			t.Errorf("formatUnits(%q, %d) = %q, want %q", c.value, c.decimals, got, c.want)
		}
	}
}
