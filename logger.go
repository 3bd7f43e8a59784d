package h2core

import (
	"log"
	"os"
)

// Logger matches fasthttp.Logger's shape, so an embedder already running
// a fasthttp.Server can hand this package its existing logger without a
// shim, and the h2fasthttp adapter can pass one straight through.
type Logger interface {
	Printf(format string, args ...interface{})
}

// defaultLogger is a stdlib *log.Logger writing to stdout with an
// "[http2]" prefix.
var defaultLogger Logger = log.New(os.Stdout, "[http2] ", log.LstdFlags)

func loggerOrDefault(l Logger) Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}
