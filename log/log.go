// Package log wires the pool's logging through beego's logs package, the
// same logger the teacher (holys-copernicus) calls directly as a package
// singleton (mempool/txmempool.go: logs.Debug(...)).
package log

import "github.com/astaxie/beego/logs"

// Logger is the shared logger used across pool, reject and
// cmd/txpool-inspect. Tests
// and cmd/txpool-inspect may swap it for one at a different level.
var Logger = logs.NewLogger(1000)

func init() {
	Logger.SetLogger(logs.AdapterConsole)
}

func Debug(format string, v ...interface{}) { Logger.Debug(format, v...) }
func Info(format string, v ...interface{})  { Logger.Info(format, v...) }
func Warn(format string, v ...interface{})  { Logger.Warn(format, v...) }
func Error(format string, v ...interface{}) { Logger.Error(format, v...) }
