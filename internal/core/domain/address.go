package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// ValidateAddress checks an Ethereum address and returns its lowercase form.
func ValidateAddress(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return "", fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return "", fmt.Errorf(
			"address must have exactly 40 hexadecimal characters after 0x, got %d",
			len(address)-2,
		)
	}
	if !addressPattern.MatchString(address) {
		return "", fmt.Errorf("address contains non-hexadecimal characters")
	}
	return strings.ToLower(address), nil
}

// ValidateTxHash checks a transaction hash and returns its lowercase form.
func ValidateTxHash(hash string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return "", fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return "", fmt.Errorf(
			"transaction hash must have exactly 64 hexadecimal characters after 0x, got %d",
			len(hash)-2,
		)
	}
	if !txHashPattern.MatchString(hash) {
		return "", fmt.Errorf("transaction hash contains non-hexadecimal characters")
	}
	return strings.ToLower(hash), nil
}
