package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// DebugLogger provides verbose debug logging with hex dump capability.
// It writes to a dedicated debug.log file and is intended for
// troubleshooting protocol-level issues such as connection errors and
// malformed controller responses.
type DebugLogger struct {
	file    *os.File
	mu      sync.Mutex
	closed  bool
	filters map[string]bool // Area filters (empty = log all)
}

// Global debug logger instance
var globalDebugLogger *DebugLogger
var globalDebugMu sync.RWMutex

// Known areas for filtering
var knownAreas = []string{
	"eip",
	"logix",
	"resolver",
	"store",
	"poll",
	"export",
	"mqtt",
	"valkey",
	"kafka",
	"web",
	"debug",
}

// NewDebugLogger creates a new debug logger that writes to the specified path.
// The file is created fresh (truncated if it exists) for each session.
func NewDebugLogger(path string) (*DebugLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log file: %w", err)
	}

	logger := &DebugLogger{
		file:    file,
		filters: make(map[string]bool),
	}

	logger.Log("DEBUG", "Debug logging started - %s", time.Now().Format(time.RFC3339))
	logger.Log("DEBUG", "========================================")

	return logger, nil
}

// KnownAreas returns the list of log areas understood by SetFilter.
func KnownAreas() []string {
	out := make([]string, len(knownAreas))
	copy(out, knownAreas)
	return out
}

// SetFilter sets the area filter for logging.
// The filter can be a single area or comma-separated list.
// Empty string means log all areas. Matching is case-insensitive.
func (l *DebugLogger) SetFilter(filter string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.filters = make(map[string]bool)

	if filter == "" {
		return // Empty filter = log all
	}

	areas := strings.Split(filter, ",")
	for _, a := range areas {
		a = strings.TrimSpace(strings.ToLower(a))
		if a == "" {
			continue
		}
		l.filters[a] = true
		// Logix traffic rides on the EIP transport, so a logix filter
		// without eip would hide the wire-level dumps that matter.
		if a == "logix" {
			l.filters["eip"] = true
		}
	}

	if len(l.filters) > 0 {
		filterList := make([]string, 0, len(l.filters))
		for a := range l.filters {
			filterList = append(filterList, a)
		}
		timestamp := time.Now().Format(timestampFormat)
		fmt.Fprintf(l.file, "%s [DEBUG] Filtering enabled for areas: %s\n",
			timestamp, strings.Join(filterList, ", "))
	}
}

// shouldLog returns true if the area should be logged based on current filter.
// Must be called with l.mu held.
func (l *DebugLogger) shouldLog(area string) bool {
	if len(l.filters) == 0 {
		return true
	}

	areaLower := strings.ToLower(area)
	if l.filters[areaLower] {
		return true
	}

	// Always allow DEBUG messages (for header/footer)
	if areaLower == "debug" {
		return true
	}

	return false
}

// SetGlobalDebugLogger sets the global debug logger instance.
func SetGlobalDebugLogger(logger *DebugLogger) {
	globalDebugMu.Lock()
	defer globalDebugMu.Unlock()
	globalDebugLogger = logger
}

// GetGlobalDebugLogger returns the global debug logger instance.
func GetGlobalDebugLogger() *DebugLogger {
	globalDebugMu.RLock()
	defer globalDebugMu.RUnlock()
	return globalDebugLogger
}

// Log writes a formatted message with timestamp and area prefix.
func (l *DebugLogger) Log(area, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if !l.shouldLog(area) {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "%s [%s] %s\n", timestamp, area, msg)
}

// LogTX logs a transmitted packet with hex dump.
func (l *DebugLogger) LogTX(area string, data []byte) {
	if l == nil {
		return
	}
	l.logPacket(area, "TX", data)
}

// LogRX logs a received packet with hex dump.
func (l *DebugLogger) LogRX(area string, data []byte) {
	if l == nil {
		return
	}
	l.logPacket(area, "RX", data)
}

// logPacket logs a packet with direction and hex dump.
func (l *DebugLogger) logPacket(area, direction string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if !l.shouldLog(area) {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	fmt.Fprintf(l.file, "%s [%s] %s (%d bytes):\n", timestamp, area, direction, len(data))
	fmt.Fprintf(l.file, "%s\n", hexDump(data))
}

// LogConnect logs a connection event.
func (l *DebugLogger) LogConnect(area, address string) {
	l.Log(area, "CONNECT to %s", address)
}

// LogConnectSuccess logs a successful connection.
func (l *DebugLogger) LogConnectSuccess(area, address, details string) {
	l.Log(area, "CONNECTED to %s - %s", address, details)
}

// LogConnectError logs a connection failure.
func (l *DebugLogger) LogConnectError(area, address string, err error) {
	l.Log(area, "CONNECT FAILED to %s: %v", address, err)
}

// LogDisconnect logs a disconnection event.
func (l *DebugLogger) LogDisconnect(area, address, reason string) {
	l.Log(area, "DISCONNECT from %s: %s", address, reason)
}

// LogError logs an error with context.
func (l *DebugLogger) LogError(area, context string, err error) {
	l.Log(area, "ERROR in %s: %v", context, err)
}

// Close closes the debug log file.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	timestamp := time.Now().Format(timestampFormat)
	fmt.Fprintf(l.file, "%s [DEBUG] Debug logging ended\n", timestamp)

	return l.file.Close()
}

// hexDump returns a hex dump of the data in a readable format.
// Format: offset: hex bytes   ASCII
// Example:
//
//	0000: 65 00 04 00 00 00 00 00  00 00 00 00 00 00 00 00  e...............
//	0010: 00 00 00 00 01 00 00 00                          ........
func hexDump(data []byte) string {
	if len(data) == 0 {
		return "    (empty)"
	}

	var sb strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		sb.WriteString(fmt.Sprintf("    %04X: ", offset))

		for i := 0; i < 8; i++ {
			if offset+i < len(data) {
				sb.WriteString(fmt.Sprintf("%02X ", data[offset+i]))
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString(" ")

		for i := 8; i < 16; i++ {
			if offset+i < len(data) {
				sb.WriteString(fmt.Sprintf("%02X ", data[offset+i]))
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString(" ")

		for i := 0; i < 16; i++ {
			if offset+i < len(data) {
				b := data[offset+i]
				if b >= 32 && b < 127 {
					sb.WriteByte(b)
				} else {
					sb.WriteByte('.')
				}
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// Global debug logging functions for use by the protocol and service packages

// DebugLog logs a message if debug logging is enabled.
func DebugLog(area, format string, args ...interface{}) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.Log(area, format, args...)
	}
}

// DebugTX logs transmitted data if debug logging is enabled.
func DebugTX(area string, data []byte) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogTX(area, data)
	}
}

// DebugRX logs received data if debug logging is enabled.
func DebugRX(area string, data []byte) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogRX(area, data)
	}
}

// DebugConnect logs a connection attempt if debug logging is enabled.
func DebugConnect(area, address string) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogConnect(area, address)
	}
}

// DebugConnectSuccess logs a successful connection if debug logging is enabled.
func DebugConnectSuccess(area, address, details string) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogConnectSuccess(area, address, details)
	}
}

// DebugConnectError logs a connection error if debug logging is enabled.
func DebugConnectError(area, address string, err error) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogConnectError(area, address, err)
	}
}

// DebugDisconnect logs a disconnection if debug logging is enabled.
func DebugDisconnect(area, address, reason string) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogDisconnect(area, address, reason)
	}
}

// DebugError logs an error if debug logging is enabled.
func DebugError(area, context string, err error) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogError(area, context, err)
	}
}
