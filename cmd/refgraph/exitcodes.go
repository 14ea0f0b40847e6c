package main

// Exit codes shared by all commands
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (runtime failure, store unavailable)
	ExitConfigError = 2 // Configuration error (bad flags, unreadable mapping, missing connection settings)
	ExitDataError   = 3 // Data error (malformed input, skipped records, failed batches)
)
