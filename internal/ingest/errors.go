package ingest

import (
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrInvalidPipeline is returned when the requested pipeline is not "A" or
// "B". It wraps vectorstore.ErrInvalidArgument so callers matching the
// broader taxonomy catch it too.
var ErrInvalidPipeline = fmt.Errorf("%w: invalid pipeline", vectorstore.ErrInvalidArgument)

// PartialIngestionError reports a batch upsert failure after earlier batches
// were already committed. Committed batches are not rolled back; the error
// carries enough progress detail for the caller to resume or re-ingest.
type PartialIngestionError struct {
	// Batch is the zero-based index of the batch that failed.
	Batch int

	// Batches is the total number of batches for the file.
	Batches int

	// Err is the underlying store error.
	Err error
}

// Error implements error.
func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at batch %d of %d: %v", e.Batch+1, e.Batches, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PartialIngestionError) Unwrap() error {
	return e.Err
}
