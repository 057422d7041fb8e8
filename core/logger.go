package core

// Logger is implemented by every logging backend of the platform.
// args may contain errors, maps of extra data or the user.User that triggered the log.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
