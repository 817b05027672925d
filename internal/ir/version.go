package ir

const (
	// TraceVersion is the version of the trace snapshot layout.
	TraceVersion = "1"

	// EngineVersion is the tryblock release.
	EngineVersion = "0.1.0"
)
