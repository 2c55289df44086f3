// Package archive writes the per-page results of terminal bulk executions to
// Parquet files for long-term analysis outside the operational database.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleName = "archive"

// resultRow is the Parquet schema for one per-page outcome.
type resultRow struct {
	ExecutionID    string `parquet:"name=execution_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProjectID      string `parquet:"name=project_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Action         string `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	State          string `parquet:"name=state, type=BYTE_ARRAY, convertedtype=UTF8"`
	SubmittedBy    string `parquet:"name=submitted_by, type=BYTE_ARRAY, convertedtype=UTF8"`
	PageID         string `parquet:"name=page_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Outcome        string `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	PreviousStatus string `parquet:"name=previous_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	NewStatus      string `parquet:"name=new_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Error          string `parquet:"name=error, type=BYTE_ARRAY, convertedtype=UTF8"`
	FinishedAt     int64  `parquet:"name=finished_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// ParquetArchiver writes one SNAPPY-compressed Parquet file per terminal
// execution into a local directory.
type ParquetArchiver struct {
	directory string
}

// NewParquetArchiver creates a ParquetArchiver rooted at the given directory.
func NewParquetArchiver(directory string) (*ParquetArchiver, error) {
	if directory == "" {
		return nil, exception.New(moduleName, exception.CodeInvalidParameter, "archive directory must not be empty", nil, false)
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to create archive directory", err, false)
	}
	return &ParquetArchiver{directory: directory}, nil
}

// Archive writes the execution's results to a Parquet file named by the
// execution id. Executions with no results are skipped.
func (a *ParquetArchiver) Archive(ctx context.Context, execution *model.BulkExecution) error {
	if len(execution.Results) == 0 {
		logger.Debugf("Execution %s has no results, skipping archive", execution.ID)
		return nil
	}

	var finishedAt int64
	if execution.EndTime != nil {
		finishedAt = execution.EndTime.UnixMilli()
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(resultRow), int64(len(execution.Results)))
	if err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to create parquet writer", err, false)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, res := range execution.Results {
		row := resultRow{
			ExecutionID:    execution.ID,
			ProjectID:      execution.ProjectID,
			Action:         string(execution.Action),
			State:          execution.State.String(),
			SubmittedBy:    execution.SubmittedBy,
			PageID:         res.PageID,
			Outcome:        string(res.Outcome),
			PreviousStatus: string(res.PreviousStatus),
			NewStatus:      string(res.NewStatus),
			Error:          res.Error,
			FinishedAt:     finishedAt,
		}
		if err := pw.Write(row); err != nil {
			return exception.New(moduleName, exception.CodeExecutionFault,
				fmt.Sprintf("failed to write parquet row for page %s", res.PageID), err, false)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to finalize parquet file", err, false)
	}

	path := filepath.Join(a.directory, fmt.Sprintf("execution_%s.parquet", execution.ID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to write archive file", err, false)
	}
	logger.Infof("Archived execution %s (%d results) to %s", execution.ID, len(execution.Results), path)
	return nil
}
