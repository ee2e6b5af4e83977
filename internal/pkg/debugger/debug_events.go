package debugger

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"
)

// DebugPrintEvent logs an outgoing event payload at debug level, indented
// when it is valid JSON.
func DebugPrintEvent(logger *zap.Logger, name string, eventData []byte) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, eventData, "", "  "); err != nil {
		logger.Debug("Event (raw)", zap.String("event", name), zap.ByteString("payload", eventData))
		return
	}
	logger.Debug("Event", zap.String("event", name), zap.String("payload", prettyJSON.String()))
}
