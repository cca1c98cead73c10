package export

import (
	"github.com/parquet-go/parquet-go"
)

// ParquetSaver writes rows as a Parquet file; undefined indicators are nulls.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(rows []Row, path string) error {
	return parquet.WriteFile(path, rows)
}
