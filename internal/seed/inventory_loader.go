package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/service"
	"bloodbank/m/internal/sheet"
)

// LoadInventory merges an .xlsx or .csv inventory file into the ledger and
// returns the number of rows applied.
func LoadInventory(ctx context.Context, svc *service.Service, path string, log *zap.Logger) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open inventory file %s: %w", path, err)
	}
	defer file.Close()

	var rows []domain.ImportRow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = sheet.ReadInventoryCSV(file)
	case ".xlsx":
		rows, err = sheet.ReadInventory(file)
	default:
		return 0, fmt.Errorf("unsupported inventory file %s: want .xlsx or .csv", path)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	n, err := svc.ImportBatches(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	log.Info("seeded inventory", zap.String("path", path), zap.Int("rows", n))
	return n, nil
}
