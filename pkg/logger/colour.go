// pkg/logger/colour.go

package logger

import (
	"go.uber.org/zap/zapcore"
)

// ANSI SGR codes per level. Levels missing here print uncoloured.
var levelColours = map[zapcore.Level]string{
	zapcore.DebugLevel:  "2",
	zapcore.InfoLevel:   "36",
	zapcore.WarnLevel:   "33",
	zapcore.ErrorLevel:  "31",
	zapcore.DPanicLevel: "1;35",
	zapcore.PanicLevel:  "1;35",
	zapcore.FatalLevel:  "1;35",
}

// ColouredLevel renders level's capital name wrapped in its colour.
func ColouredLevel(level zapcore.Level) string {
	code, ok := levelColours[level]
	if !ok {
		return level.CapitalString()
	}
	return "\033[" + code + "m" + level.CapitalString() + "\033[0m"
}

func colourLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(ColouredLevel(l))
}
