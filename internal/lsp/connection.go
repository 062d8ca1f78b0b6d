package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Connection reads and writes Content-Length framed LSP messages.
type Connection struct {
	reader *bufio.Reader
	writer io.Writer
	logger *slog.Logger

	// wmu keeps concurrent writers from interleaving frames.
	wmu sync.Mutex
}

// NewConnection creates a new LSP connection
func NewConnection(reader io.Reader, writer io.Writer, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connection{
		reader: bufio.NewReader(reader),
		writer: writer,
		logger: logger,
	}
}

// ReadMessage reads one message. It returns io.EOF when the peer closed the
// stream between messages.
func (c *Connection) ReadMessage() (*Message, error) {
	contentLength := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && contentLength < 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		contentLength = n
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, content); err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}

	var message Message
	if err := json.Unmarshal(content, &message); err != nil {
		return nil, fmt.Errorf("failed to parse JSON message: %w", err)
	}
	c.logger.Debug("lsp recv", "method", message.Method, "id", message.ID, "bytes", contentLength)
	return &message, nil
}

// WriteMessage writes an LSP message to the connection
func (c *Connection) WriteMessage(message *Message) error {
	content, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(content)); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if _, err := c.writer.Write(content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	c.logger.Debug("lsp send", "method", message.Method, "id", message.ID, "bytes", len(content))
	return nil
}
