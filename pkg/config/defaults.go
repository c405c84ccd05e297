package config

// Input defaults.
const (
	DefaultInputRoot        = "src"
	DefaultInputPattern     = "**/*.js"
	DefaultInputSkipVendor  = false
	DefaultInputMaxFileSize = "4MB"
)

// DefaultInputExclude lists base names never scanned: the base file and the ES module shim.
var DefaultInputExclude = []string{"base.js", "goog.js"} //nolint:gochecknoglobals // default value

// Output defaults.
const (
	DefaultOutputRoot  = "lib"
	DefaultOutputClean = true
)

// Base unit defaults.
const (
	DefaultBaseFile = "base.js"
)

// Placeholder defaults.
const (
	DefaultPlaceholderNamespace = "goog.async.Deferred"
)

// Dialect defaults.
const (
	DefaultDialectProvide = "goog.provide"
	DefaultDialectModule  = "goog.module"
	DefaultDialectRequire = "goog.require"
)

// Resolve defaults.
const (
	DefaultResolveStrict = false
)

// DefaultResolveExtensions lists the source extensions stripped from specifiers.
var DefaultResolveExtensions = []string{".js"} //nolint:gochecknoglobals // default value

// Emit defaults.
const (
	DefaultEmitBinding       = "goog"
	DefaultEmitDefaultExport = false
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Telemetry defaults.
const (
	DefaultTelemetryJob = "esmigrate"
)

// DefaultWorkers selects one worker per CPU.
const DefaultWorkers = 0
