package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrMissingIdentity   = errors.New("missing user identity")
	ErrBusy              = errors.New("previous message is still being processed")
	ErrSessionReset      = errors.New("session was reset while the message was processed")
	ErrDraftIncomplete   = errors.New("task draft is incomplete")
	ErrPersistenceFailed = errors.New("failed to save task")
)

const DefaultExtractTimeout = 10 * time.Second

type State string

const (
	StateCollecting State = "collecting"
	StateComplete   State = "complete"
)

// Extraction is the normalized result of a successful extraction call.
type Extraction struct {
	Fields  Fields
	Missing []Field
}

// Extractor turns free text into a partial task record. Any returned error is
// treated as a failed extraction.
type Extractor interface {
	Extract(ctx context.Context, text, contextID string) (Extraction, error)
}

// Saver persists a complete draft and returns the new task id.
type Saver interface {
	SaveDraft(ctx context.Context, userID string, d Draft) (int, error)
}

// Turn is one message of the conversation log.
type Turn struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is what a submitted message produced. Answered is the slot the
// message was taken as an answer to, FieldNone on an opening turn.
type Reply struct {
	Text             string `json:"text"`
	State            State  `json:"state"`
	Pending          Field  `json:"pending_field"`
	Answered         Field  `json:"answered_field"`
	ExtractionFailed bool   `json:"extraction_failed"`
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Pending   Field     `json:"pending_field"`
	Busy      bool      `json:"busy"`
	Draft     Draft     `json:"draft"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

type Option func(*Session)

func WithExtractTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session drives one task-completion conversation. It owns its draft and
// turn log; all methods are safe for concurrent use, but at most one
// message is processed at a time.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	extractor Extractor
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu         sync.Mutex
	draft      *Draft
	turns      []Turn
	complete   bool
	busy       bool
	gen        uint64
	lastActive time.Time
}

func NewSession(id, userID string, ex Extractor, opts ...Option) *Session {
	s := &Session{
		ID:        id,
		UserID:    userID,
		extractor: ex,
		timeout:   DefaultExtractTimeout,
		now:       time.Now,
		logger:    slog.Default(),
		draft:     NewDraft(),
	}
	for _, o := range opts {
		o(s)
	}
	s.CreatedAt = s.now()
	s.lastActive = s.CreatedAt
	return s
}

// Submit processes one user message. The user turn is appended before the
// extraction call starts; the system turn after it resolves.
func (s *Session) Submit(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyInput
	}
	if strings.TrimSpace(s.UserID) == "" {
		return Reply{}, ErrMissingIdentity
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Reply{}, ErrBusy
	}
	s.appendTurn(text, true)
	if s.complete {
		// a finished draft is never reopened; start over
		s.draft = NewDraft()
		s.complete = false
	}
	pending := s.draft.Pending
	gen := s.gen
	s.busy = true
	s.mu.Unlock()

	ext, extErr := s.extract(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return Reply{}, ErrSessionReset
	}
	s.busy = false

	if extErr != nil {
		s.logger.Warn("extraction failed",
			"session_id", s.ID,
			"pending_field", string(pending),
			"error", extErr,
		)
	}

	reply := s.advance(pending, text, ext, extErr)
	reply.Answered = pending
	s.appendTurn(reply.Text, false)
	return reply, nil
}

func (s *Session) extract(ctx context.Context, text string) (Extraction, error) {
	if s.extractor == nil {
		return Extraction{}, errors.New("no extractor configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.extractor.Extract(ctx, text, s.UserID)
}

// advance applies one resolved extraction to the draft. Callers hold s.mu.
func (s *Session) advance(pending Field, text string, ext Extraction, extErr error) Reply {
	d := s.draft

	if pending == FieldNone {
		if extErr != nil {
			return Reply{
				Text:             FallbackPrompt,
				State:            StateCollecting,
				ExtractionFailed: true,
			}
		}
		d.ApplyExtracted(ext.Fields)
	} else if extErr != nil || !d.assignExtracted(pending, ext.Fields) {
		d.AssignLiteral(pending, text)
	}

	d.Pending = d.NextMissingField()
	if d.Pending == FieldNone {
		s.complete = true
		return Reply{
			Text:             CompletionSummary(d),
			State:            StateComplete,
			ExtractionFailed: extErr != nil,
		}
	}

	return Reply{
		Text:             Prompt(d.Pending),
		State:            StateCollecting,
		Pending:          d.Pending,
		ExtractionFailed: extErr != nil,
	}
}

// Reset clears the conversation and starts a new empty draft. A message
// still in flight is discarded when it resolves.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.busy = false
	s.complete = false
	s.draft = NewDraft()
	s.turns = nil
	s.lastActive = s.now()
}

// Save hands a complete draft to saver. On failure the draft is kept so the
// save can be retried; on success the session starts a new empty draft.
func (s *Session) Save(ctx context.Context, saver Saver) (int, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	if !s.complete || !s.draft.IsComplete() {
		s.mu.Unlock()
		return 0, ErrDraftIncomplete
	}
	d := s.draft.clone()
	gen := s.gen
	s.busy = true
	s.mu.Unlock()

	id, err := saver.SaveDraft(ctx, s.UserID, d)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// reset during save; the task may still have been created
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
		return id, nil
	}
	s.busy = false
	s.lastActive = s.now()

	if err != nil {
		s.logger.Warn("save task failed", "session_id", s.ID, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	s.draft = NewDraft()
	s.complete = false
	return id, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	if s.complete {
		return StateComplete
	}
	return StateCollecting
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

// Turns returns a copy of the conversation log.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:        s.ID,
		State:     s.state(),
		Pending:   s.draft.Pending,
		Busy:      s.busy,
		Draft:     s.draft.clone(),
		Turns:     append([]Turn{}, s.turns...),
		CreatedAt: s.CreatedAt,
	}
}

func (s *Session) idleSince() (last time.Time, busy, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.busy, s.complete
}

func (s *Session) appendTurn(text string, isUser bool) {
	now := s.now()
	s.turns = append(s.turns, Turn{Text: text, IsUser: isUser, Timestamp: now})
	s.lastActive = now
}
