package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"propchain/core/types"
)

func TestExportParquet(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	_, err := log.Append(ctx, &types.Event{Type: "escrow.initiated", Attributes: map[string]string{"id": "e1", "amount": "60"}})
	require.NoError(t, err)
	_, err = log.Append(ctx, &types.Event{Type: "escrow.released", Attributes: map[string]string{"id": "e1", "amount": "60"}})
	require.NoError(t, err)
	_, err = log.Append(ctx, &types.Event{Type: "lease.created", Attributes: map[string]string{"agreementId": "a1"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "escrow.parquet")
	written, err := log.ExportParquet(ctx, Filter{RecordID: "e1"}, path)
	require.NoError(t, err)
	require.Equal(t, 2, written)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 2, pr.GetNumRows())

	rows := make([]parquetRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "escrow.initiated", rows[0].Type)
	require.Equal(t, "escrow.released", rows[1].Type)
	require.Equal(t, "e1", rows[1].RecordID)
	require.Len(t, rows[1].Digest, 64)
}
