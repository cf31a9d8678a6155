package eventlog

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Seq        int64  `parquet:"name=seq, type=INT64"`
	Type       string `parquet:"name=type, type=UTF8"`
	RecordID   string `parquet:"name=record_id, type=UTF8"`
	PropertyID string `parquet:"name=property_id, type=UTF8"`
	Attributes string `parquet:"name=attributes, type=UTF8"`
	Digest     string `parquet:"name=digest, type=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=UTF8"`
}

// ExportParquet writes the entries matching filter to a parquet file at path
// and returns the number of rows written.
func (l *Log) ExportParquet(ctx context.Context, filter Filter, path string) (int, error) {
	entries, err := l.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := writeParquet(path, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func writeParquet(path string, entries []Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eventlog: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("eventlog: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, entry := range entries {
		row := &parquetRow{
			Seq:        int64(entry.Seq),
			Type:       entry.Type,
			RecordID:   entry.RecordID,
			PropertyID: entry.PropertyID,
			Attributes: entry.Attributes,
			Digest:     entry.Digest,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("eventlog: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("eventlog: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("eventlog: close parquet file: %w", err)
	}
	return nil
}
