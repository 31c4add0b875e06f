// -----------------------------------------------------------------------
// LogStreamer consumes log batches from arbor's channel and broadcasts
// matching lines to connected websocket clients.
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/congruo/internal/common"
)

// defaultExcludePatterns suppresses chatty infrastructure messages that would
// otherwise echo back through the stream they describe.
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
	"Publishing event",
}

// LogStreamer consumes log batches from arbor and pushes them to websocket
// clients. Registered with the logger via SetChannel during startup.
type LogStreamer struct {
	handler         *WebSocketHandler
	logger          arbor.ILogger
	channel         chan []arbormodels.LogEvent
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	minLevel        arbor.LogLevel
	excludePatterns []string
}

// NewLogStreamer creates a log streamer for the given websocket handler
func NewLogStreamer(handler *WebSocketHandler, logger arbor.ILogger, config *common.WebSocketConfig) *LogStreamer {
	minLevel := arbor.InfoLevel
	patterns := defaultExcludePatterns
	if config != nil {
		if config.MinLevel != "" {
			minLevel = parseStreamLevel(config.MinLevel)
		}
		if len(config.ExcludePatterns) > 0 {
			patterns = config.ExcludePatterns
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LogStreamer{
		handler:         handler,
		logger:          logger,
		channel:         make(chan []arbormodels.LogEvent, 10),
		ctx:             ctx,
		cancel:          cancel,
		minLevel:        minLevel,
		excludePatterns: patterns,
	}
}

// parseStreamLevel converts string log level to arbor.LogLevel
func parseStreamLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// shortLevel converts full level names to 3-letter codes for display
func shortLevel(level string) string {
	switch strings.ToUpper(level) {
	case "INFO":
		return "INF"
	case "WARN", "WARNING":
		return "WRN"
	case "ERROR":
		return "ERR"
	case "DEBUG":
		return "DBG"
	default:
		if len(level) == 3 {
			return strings.ToUpper(level)
		}
		return "INF"
	}
}

// GetChannel returns the channel for arbor to send log batches to
func (s *LogStreamer) GetChannel() chan []arbormodels.LogEvent {
	return s.channel
}

// Start launches the streaming goroutine
func (s *LogStreamer) Start() error {
	s.wg.Add(1)
	go s.consume()
	return nil
}

// Stop gracefully shuts down the streamer
func (s *LogStreamer) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// consume drains log batches and broadcasts entries that pass the filters
func (s *LogStreamer) consume() {
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("LogStreamer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-s.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				if !s.shouldBroadcast(event) {
					continue
				}
				s.handler.BroadcastLog(LogEntry{
					Timestamp: event.Timestamp.Format("15:04:05"),
					Level:     shortLevel(event.Level.String()),
					Message:   event.Message,
				})
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// shouldBroadcast applies the level threshold and exclusion patterns
func (s *LogStreamer) shouldBroadcast(event arbormodels.LogEvent) bool {
	if arborlevels.FromLogLevel(event.Level) < s.minLevel {
		return false
	}
	for _, pattern := range s.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return false
		}
	}
	return true
}
