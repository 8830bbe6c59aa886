package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrMissingChatID is returned for events that do not name a conversation
var ErrMissingChatID = errors.New("chatId is required")

// Event is one analytics record sent by the frontend
type Event struct {
	ChatID    int64  `json:"chatId"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// ndjsonFormatter writes the entry fields as one JSON object per line
type ndjsonFormatter struct{}

func (ndjsonFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	line, err := json.Marshal(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analytics event: %w", err)
	}
	return append(line, '\n'), nil
}

// Sink appends events to a newline-delimited JSON log
type Sink struct {
	log    *logrus.Logger
	closer io.Closer
	loc    *time.Location
}

// NewSink writes events to w
func NewSink(w io.Writer) *Sink {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(ndjsonFormatter{})
	return &Sink{log: l, loc: time.Local}
}

// NewFileSink opens path for appending, creating it if needed
func NewFileSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics log: %w", err)
	}
	s := NewSink(f)
	s.closer = f
	return s, nil
}

// Record appends the event with the client address and a readable timestamp
func (s *Sink) Record(ev Event, clientIP string) error {
	if ev.ChatID == 0 {
		return ErrMissingChatID
	}

	s.log.WithFields(logrus.Fields{
		"chatId":      ev.ChatID,
		"model":       ev.Model,
		"prompt":      ev.Prompt,
		"response":    ev.Response,
		"timestamp":   ev.Timestamp,
		"ip":          clientIP,
		"ts_readable": time.UnixMilli(ev.Timestamp).In(s.loc).Format("2006-01-02T15:04:05.000"),
	}).Info("analytics")
	return nil
}

// Close closes the underlying file, if any
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
