package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

func TestWriteAll_ProducesAllFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	svc := NewService(config.ExportConfig{BaseDir: dir}, logger.NewNop())
	tenantID, orderID := uuid.New(), uuid.New()

	rows := []Row{
		{ProductName: "Steam 50", SerialNumber: "AAA-1", PIN: "1111"},
		{ProductName: "Steam 50", SerialNumber: "AAA-2", PIN: "2222"},
	}

	written := svc.WriteAll(context.Background(), tenantID, orderID, rows)
	require.Len(t, written, 3)

	base := filepath.Join(dir, tenantID.String(), orderID.String())

	text, err := os.ReadFile(base + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "AAA-1\t1111\nAAA-2\t2222\n", string(text))

	csvFile, err := os.Open(base + ".csv")
	require.NoError(t, err)
	defer csvFile.Close()
	records, err := csv.NewReader(csvFile).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"product_name", "serial_number", "pin"}, records[0])
	assert.Equal(t, []string{"Steam 50", "AAA-1", "1111"}, records[1])

	pdfInfo, err := os.Stat(base + ".pdf")
	require.NoError(t, err)
	assert.Greater(t, pdfInfo.Size(), int64(0))
}

func TestWriteAll_UnwritableDirIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	svc := NewService(config.ExportConfig{BaseDir: string([]byte{0})}, logger.NewNop())
	written := svc.WriteAll(context.Background(), uuid.New(), uuid.New(), nil)
	assert.Empty(t, written)
}
