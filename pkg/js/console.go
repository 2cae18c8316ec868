package js

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// consoleAPI routes console.* to the engine's logger.
type consoleAPI struct {
	logger *zap.Logger
}

func (c *consoleAPI) register(vm *goja.Runtime) {
	console := vm.NewObject()
	console.Set("log", c.at(zapcore.InfoLevel))
	console.Set("info", c.at(zapcore.InfoLevel))
	console.Set("debug", c.at(zapcore.DebugLevel))
	console.Set("warn", c.at(zapcore.WarnLevel))
	console.Set("error", c.at(zapcore.ErrorLevel))
	vm.Set("console", console)
}

func (c *consoleAPI) at(level zapcore.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if ce := c.logger.Check(level, formatArgs(call.Arguments)); ce != nil {
			ce.Write(zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
