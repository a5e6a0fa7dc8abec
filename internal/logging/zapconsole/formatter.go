package zapconsole

import (
	"fmt"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// BackendLoggerName marks entries describing one backend round trip.
const BackendLoggerName = "backendLogger"

var _bufferPool = buffer.NewPool()

func (enc *ConsoleEncoder) EncodeBackendRequest(arr *sliceArrayEncoder, fields []zapcore.Field) {
	var status int64

	var duration time.Duration

	var method, path, voicemailID string

	for fieldIndx := range fields {
		switch fields[fieldIndx].Key {
		case "status":
			status = fields[fieldIndx].Integer
		case "duration":
			duration = time.Duration(fields[fieldIndx].Integer)
		case "method":
			method = fields[fieldIndx].String
		case "path":
			path = fields[fieldIndx].String
		case "voicemail_id":
			voicemailID = fields[fieldIndx].String
		default:
		}
	}

	arr.AppendInt64(status)
	arr.AppendString(method)
	arr.AppendString(path)

	if voicemailID != "" {
		arr.AppendString(voicemailID)
	}

	arr.AppendString(duration.String())
}

func (enc *ConsoleEncoder) EncodeCustomLog(arr *sliceArrayEncoder, ent *zapcore.Entry, fields []zapcore.Field) {
	if ent.Caller.Defined {
		if enc.CallerKey != "" && enc.EncodeCaller != nil {
			enc.EncodeCaller(ent.Caller, arr)
		}

		if enc.FunctionKey != "" {
			arr.AppendString(ent.Caller.Function)
		}
	}

	if enc.MessageKey != "" {
		arr.AppendString(ent.Message)
	}

	appendFields(arr, fields)
}

// appendFields keeps the console line short: only identifiers and errors are shown.
func appendFields(arr *sliceArrayEncoder, fields []zapcore.Field) {
	for fieldIndx := range fields {
		field := fields[fieldIndx]

		switch {
		case field.Key == "voicemail_id" && field.Type == zapcore.StringType:
			arr.AppendString("vm=" + field.String)
		case field.Key == "error" && field.Type == zapcore.StringType:
			arr.AppendString(field.String)
		case field.Type == zapcore.ErrorType:
			err, ok := field.Interface.(error)
			if ok && err != nil {
				arr.AppendString(err.Error())
			}
		default:
		}
	}
}

func (enc *ConsoleEncoder) encodeFixedFields(arr *sliceArrayEncoder, ent *zapcore.Entry) {
	if enc.TimeKey != "" && enc.EncodeTime != nil && !ent.Time.IsZero() {
		enc.EncodeTime(ent.Time, arr)
	}

	if enc.LevelKey != "" && enc.EncodeLevel != nil {
		enc.EncodeLevel(ent.Level, arr)
	}
}

func (enc *ConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := _bufferPool.Get()

	arr := getSliceEncoder()
	enc.encodeFixedFields(arr, &ent)

	if ent.LoggerName == BackendLoggerName {
		enc.EncodeBackendRequest(arr, fields)
	} else {
		enc.EncodeCustomLog(arr, &ent, fields)
	}

	for indx := range arr.elems {
		if indx > 0 {
			line.AppendString(enc.ConsoleSeparator)
		}

		_, _ = fmt.Fprint(line, arr.elems[indx])
	}

	putSliceEncoder(arr)

	if ent.Stack != "" && enc.StacktraceKey != "" {
		line.AppendByte('\n')
		line.AppendString(ent.Stack)
	}

	if enc.LineEnding != "" {
		line.AppendString(enc.LineEnding)
	} else {
		line.AppendString(zapcore.DefaultLineEnding)
	}

	return line, nil
}
