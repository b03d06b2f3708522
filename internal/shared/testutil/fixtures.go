package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// AAPLCSV and MSFTCSV are two per-company price files without a Name column.
const (
	AAPLCSV = "date,open,high,low,close,volume\n" +
		"2020-01-02,296.24,300.60,295.19,300.00,33870100\n" +
		"2020-01-03,297.15,300.58,296.50,305.00,36580700\n"

	MSFTCSV = "date,open,high,low,close,volume\n" +
		"2020-01-02,158.78,160.73,158.33,160.00,22622100\n" +
		"2020-01-03,158.32,159.95,158.06,162.00,21116200\n"
)

// WriteSources writes each name/content pair into dir and returns the
// created paths in the order given.
func WriteSources(t *testing.T, dir string, files map[string]string, order ...string) []string {
	t.Helper()

	if len(order) == 0 {
		for name := range files {
			order = append(order, name)
		}
	}

	paths := make([]string, 0, len(order))
	for _, name := range order {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(files[name]), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths
}

// StockDataDir creates a temp dir holding AAPL_data.csv and MSFT_data.csv.
func StockDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	WriteSources(t, dir, map[string]string{
		"AAPL_data.csv": AAPLCSV,
		"MSFT_data.csv": MSFTCSV,
	}, "AAPL_data.csv", "MSFT_data.csv")
	return dir
}
