package errcode

import (
	"github.com/gnames/gn"
)

const (
	UnknownError gn.ErrorCode = iota

	// File System errors
	CreateDirError
	CopyFileError
	DecodeConfigError

	// Logging errors
	CreateLogFileError

	// Pipeline errors
	PipelineGraphError
	PipelineUnknownStageError
	PipelineStageError
	PipelineBlockedError
	PipelineCancelledError

	// Artifact errors
	ArtifactCommitError
	ArtifactReadError
	ArtifactWriteError

	// Fetch errors
	FetchStatusError
	FetchRequestError

	// Entrez errors
	EntrezSearchError
	EntrezPostError
	EntrezResponseError

	// GBIF errors
	GBIFSubmitError
	GBIFJobFailedError
	GBIFPollExhaustedError
	GBIFCredentialsError

	// Archive errors
	ArchiveDownloadError
	ArchiveEmptyError
	ArchiveFormatError

	// Raster errors
	RasterBandMapError
	RasterFormatError
	RasterShapeError
	RasterAlignError

	// Export errors
	ExportPostgresError
	ExportSQLiteError
	ExportParquetError
	ExportBucketError
	ExportNotReadyError
	ExportNoTargetError
)
