package domain

import "time"

// Category identifies one of the four upstream transaction lists.
type Category string

const (
	CategoryNative   Category = "native"
	CategoryInternal Category = "internal"
	CategoryToken    Category = "token"
	CategoryNFT      Category = "nft"
)

// Categories returns all categories in deterministic merge order.
func Categories() []Category {
	return []Category{CategoryNative, CategoryInternal, CategoryToken, CategoryNFT}
}

// RawTransaction is a single row exactly as the explorer API serializes it.
// Every field is a string; numeric fields are decimal strings. Not every
// category populates every field (internal transfers carry no gas price,
// only token transfers carry token metadata).
type RawTransaction struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	GasUsed         string `json:"gasUsed"`
	GasPrice        string `json:"gasPrice"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	TokenID         string `json:"tokenID"`
}

// TransactionType is the user-facing classification of a normalized transaction.
type TransactionType string

const (
	TxTypeETH      TransactionType = "ETH"
	TxTypeERC20    TransactionType = "ERC-20"
	TxTypeERC721   TransactionType = "ERC-721"
	TxTypeERC1155  TransactionType = "ERC-1155"
	TxTypeInternal TransactionType = "Internal"
)

// NormalizedTransaction is the unified shape all four categories map into.
// Value and GasFee are non-negative decimal strings in whole-unit terms
// (ETH for native value and all gas fees, token units for ERC-20).
type NormalizedTransaction struct {
	TxHash       string          `json:"tx_hash"`
	BlockNumber  uint64          `json:"block_number"`
	Timestamp    time.Time       `json:"timestamp"`
	From         string          `json:"from_address"`
	To           string          `json:"to_address"`
	Type         TransactionType `json:"transaction_type"`
	TokenAddress string          `json:"token_address,omitempty"`
	TokenSymbol  string          `json:"token_symbol,omitempty"`
	TokenName    string          `json:"token_name,omitempty"`
	TokenID      string          `json:"token_id,omitempty"`
	Value        string          `json:"value"`
	GasFee       string          `json:"gas_fee"`
}
