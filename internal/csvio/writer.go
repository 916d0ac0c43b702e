package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/devrev/toypay/internal/amount"
	"github.com/devrev/toypay/internal/model"
)

var snapshotHeader = []string{"client", "available", "held", "total", "locked"}

// WriteSnapshots writes one row per account, amounts with two decimals
func WriteSnapshots(out io.Writer, snapshots []model.AccountSnapshot) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(snapshotHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range snapshots {
		row := []string{
			strconv.FormatUint(uint64(s.ClientID), 10),
			s.Available.StringFixed(amount.Scale),
			s.Held.StringFixed(amount.Scale),
			s.Total.StringFixed(amount.Scale),
			strconv.FormatBool(s.Locked),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
