package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	chatHistoryFile = "chat_history.json"
	feedbackFile    = "feedback.json"
	scenarioFile    = "scenarios.json"

	// maxChatRecords bounds the chat log file size; older records are
	// dropped once the cap is exceeded.
	maxChatRecords = 1000

	// maxListLimit bounds a single history page.
	maxListLimit = 100
)

// Store persists records under a single data directory. All methods are safe
// for concurrent use; writes go through a temp file and rename so a crashed
// write never leaves a truncated log behind.
type Store struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewStore creates the data directory if needed and returns a Store over it.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the data directory the store writes under.
func (s *Store) Dir() string {
	return s.dir
}

// RecordChat appends one completed exchange to the chat log, trimming the
// log to the newest records when it exceeds the retention cap. Message
// lengths are counted in characters.
func (s *Store) RecordChat(userMessage, assistantMessage, clientIP string, messageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []ChatRecord
	s.load(chatHistoryFile, &records)

	records = append(records, ChatRecord{
		ID:                     uuid.NewString(),
		Timestamp:              time.Now(),
		UserMessage:            userMessage,
		AssistantMessage:       assistantMessage,
		ClientIP:               clientIP,
		MessageCount:           messageCount,
		UserMessageLength:      utf8.RuneCountInString(userMessage),
		AssistantMessageLength: utf8.RuneCountInString(assistantMessage),
	})

	if len(records) > maxChatRecords {
		records = records[len(records)-maxChatRecords:]
	}

	if err := s.save(chatHistoryFile, records); err != nil {
		return err
	}

	s.logger.Debug("chat record saved",
		zap.String("client_ip", clientIP),
		zap.Int("message_count", messageCount))
	return nil
}

// AddFeedback validates and appends one feedback record, filling its ID and
// timestamp.
func (s *Store) AddFeedback(f Feedback) error {
	if err := f.Validate(); err != nil {
		return err
	}

	f.ID = uuid.NewString()
	f.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Feedback
	s.load(feedbackFile, &records)
	records = append(records, f)

	if err := s.save(feedbackFile, records); err != nil {
		return err
	}

	s.logger.Info("feedback received",
		zap.String("ip", f.IP),
		zap.String("feedback_type", f.FeedbackType),
		zap.Int("rating", f.Rating))
	return nil
}

// AddScenario validates and appends one scenario record, filling its ID and
// timestamp.
func (s *Store) AddScenario(sc Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	sc.ID = uuid.NewString()
	sc.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Scenario
	s.load(scenarioFile, &records)
	records = append(records, sc)

	if err := s.save(scenarioFile, records); err != nil {
		return err
	}

	s.logger.Info("scenario received",
		zap.String("ip", sc.IP),
		zap.String("scenario", sc.Scenario))
	return nil
}

// Page is one slice of the chat log, newest record first.
type Page struct {
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Records []ChatRecord `json:"records"`
}

// ListChats returns a page of the chat log. Records come back newest first;
// offset counts from the newest record. Limit is clamped to the page cap and
// defaults to 50 when non-positive.
func (s *Store) ListChats(limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []ChatRecord
	s.load(chatHistoryFile, &records)

	total := len(records)
	end := total - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	page := &Page{Total: total, Limit: limit, Offset: offset, Records: []ChatRecord{}}
	for i := end - 1; i >= start; i-- {
		page.Records = append(page.Records, records[i])
	}

	return page, nil
}

// load reads a JSON list from name into out. Missing files and unparseable
// content both leave out untouched: a corrupt log is logged and treated as
// empty rather than wedging the server.
func (s *Store) load(name string, out any) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("reading record file failed", zap.String("file", name), zap.Error(err))
		}
		return
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("record file is not a valid list, starting over",
			zap.String("file", name), zap.Error(err))
	}
}

func (s *Store) save(name string, records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}

	return nil
}
