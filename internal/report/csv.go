package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// csvHeader is the column order of the output artifact.
var csvHeader = []string{
	"Transaction Hash",
	"Date & Time",
	"From Address",
	"To Address",
	"Transaction Type",
	"Asset Contract Address",
	"Asset Symbol / Name",
	"Token ID",
	"Value / Amount",
	"Gas Fee (ETH)",
}

// WriteCSV serializes transactions to w, one row per transaction.
func WriteCSV(w io.Writer, txs []domain.NormalizedTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, tx := range txs {
		asset := tx.TokenSymbol
		if tx.TokenName != "" {
			if asset != "" {
				asset += " / "
			}
			asset += tx.TokenName
		}
		row := []string{
			tx.TxHash,
			tx.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
			tx.From,
			tx.To,
			string(tx.Type),
			tx.TokenAddress,
			asset,
			tx.TokenID,
			tx.Value,
			tx.GasFee,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeCSVFile writes the artifact for one address into dir and returns the
// file path and its size in MB.
func writeCSVFile(dir, address string, txs []domain.NormalizedTransaction) (string, float64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create reports dir: %w", err)
	}

	short := address
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("ethereum_transactions_%s_%s.csv", short, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create report file: %w", err)
	}

	if err := WriteCSV(f, txs); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close report file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat report file: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	return path, sizeMB, nil
}
