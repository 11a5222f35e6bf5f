package types

// LogLevel represents the logging verbosity
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) String() string {
	return string(l)
}

// RunMode represents the deployment mode of the process
type RunMode string

const (
	ModeLocal  RunMode = "local"
	ModeServer RunMode = "server"
)
