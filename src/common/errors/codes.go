package errors

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
)

// ============================================================================
// Resolution Errors
// ============================================================================

var (
	// ErrResolution is returned when an artifact coordinate cannot be resolved to a local file
	ErrResolution = New(DomainResolve, "not_resolved", ExitResolution,
		"Failed to resolve artifact")
)

// ============================================================================
// Filesystem Errors
// ============================================================================

var (
	// ErrRead is returned when a referenced local file (icon, license text) cannot be read
	ErrRead = New(DomainIO, "read_failed", ExitIO,
		"Failed to read file")

	// ErrFileNotFound is returned when an expected local file vanished before it could be read
	ErrFileNotFound = New(DomainIO, "file_not_found", ExitIO,
		"File not found")

	// ErrIO is returned when a target file cannot be created or written
	ErrIO = New(DomainIO, "write_failed", ExitIO,
		"Failed to write file")

	// ErrDirectoryCreation is returned when a target directory cannot be created
	ErrDirectoryCreation = New(DomainIO, "mkdir_failed", ExitIO,
		"Failed to create directory")
)

// ============================================================================
// Archive Errors
// ============================================================================

var (
	// ErrExtraction is returned when an archive is corrupt, empty or cannot be extracted
	ErrExtraction = New(DomainArchive, "extraction_failed", ExitPackaging,
		"Failed to extract archive")

	// ErrDuplicateEntry is returned when the same entry name is added twice to one archive
	ErrDuplicateEntry = New(DomainArchive, "duplicate_entry", ExitPackaging,
		"Duplicate archive entry")

	// ErrUnsupportedArchive is returned for archive formats the reader does not handle
	ErrUnsupportedArchive = New(DomainArchive, "unsupported_format", ExitPackaging,
		"Unsupported archive format")
)

// ============================================================================
// Descriptor Errors
// ============================================================================

var (
	// ErrDescriptorInvalid is returned when a rendered descriptor fails schema validation
	ErrDescriptorInvalid = New(DomainDescriptor, "invalid", ExitPackaging,
		"Descriptor failed validation")
)

// ============================================================================
// Assembly Errors
// ============================================================================

var (
	// ErrMissingBaseDistribution is returned when a platform build has no identifiable base
	ErrMissingBaseDistribution = New(DomainAssembly, "missing_base", ExitPackaging,
		"No specified base distribution (Felix or xOWL platform)")

	// ErrUnknownKind is returned for an unsupported build kind
	ErrUnknownKind = New(DomainAssembly, "unknown_kind", ExitUsage,
		"Unknown build kind")

	// ErrStageFailed is returned when a pipeline stage fails without a structured cause
	ErrStageFailed = New(DomainAssembly, "stage_failed", ExitPackaging,
		"Build stage failed")
)

// ============================================================================
// Project Errors
// ============================================================================

var (
	// ErrInvalidProject is returned when the project description is incomplete or malformed
	ErrInvalidProject = New(DomainProject, CodeInvalidRequest, ExitUsage,
		"Invalid project description")

	// ErrProjectNotFound is returned when the project file does not exist
	ErrProjectNotFound = New(DomainProject, CodeNotFound, ExitUsage,
		"Project file not found")
)

// ============================================================================
// Configuration Errors
// ============================================================================

var (
	// ErrInvalidConfig is returned when the configuration file cannot be read
	ErrInvalidConfig = New(DomainConfig, CodeInvalidRequest, ExitUsage,
		"Invalid configuration")

	// ErrInvalidArgument is returned when a command line argument is rejected
	ErrInvalidArgument = New(DomainConfig, "invalid_argument", ExitUsage,
		"Invalid argument")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	// ErrStorageNotFound is returned when a storage object cannot be found
	ErrStorageNotFound = New(DomainStorage, CodeNotFound, ExitStorage,
		"Object not found in storage")

	// ErrStorageUploadFailed is returned when a storage upload fails
	ErrStorageUploadFailed = New(DomainStorage, "upload_failed", ExitStorage,
		"Failed to upload object to storage")

	// ErrStorageDownloadFailed is returned when a storage download fails
	ErrStorageDownloadFailed = New(DomainStorage, "download_failed", ExitStorage,
		"Failed to download object from storage")

	// ErrStorageDeleteFailed is returned when a storage object cannot be deleted
	ErrStorageDeleteFailed = New(DomainStorage, "delete_failed", ExitStorage,
		"Failed to delete object from storage")

	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, ExitStorage,
		"Storage backend unavailable")
)

// ============================================================================
// Database Errors
// ============================================================================

var (
	// ErrDatabaseConnection is returned when the history database cannot be opened
	ErrDatabaseConnection = New(DomainDatabase, "connection_failed", ExitFailure,
		"Database connection failed")

	// ErrDatabaseQuery is returned when a database query fails
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", ExitFailure,
		"Database query failed")

	// ErrBuildNotFound is returned when a build record cannot be found
	ErrBuildNotFound = New(DomainDatabase, CodeNotFound, ExitFailure,
		"Build not found")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal error
	ErrInternal = New(DomainInternal, CodeInternal, ExitFailure,
		"Internal error")
)
