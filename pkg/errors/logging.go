package errors

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogError logs err with its error_code. Caller faults (bad input, auth,
// missing rows, conflicts) go out at warn; everything else at error.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err))

	level := zapcore.ErrorLevel
	var appErr *AppError
	if As(err, &appErr) {
		allFields = append(allFields, zap.String("error_code", appErr.Code()))
		if isClientCode(appErr.Code()) {
			level = zapcore.WarnLevel
		}
	}
	allFields = append(allFields, fields...)

	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(allFields...)
	}
}

func isClientCode(code string) bool {
	switch code {
	case ErrNotFound, ErrInvalidArgument, ErrUnauthenticated, ErrUnauthorized, ErrConflict, ErrRateLimited:
		return true
	}
	return false
}
