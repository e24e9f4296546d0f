package application

import "go.uber.org/zap"

const ModuleName = "newsletter/publishing-service"

func ResolveLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
