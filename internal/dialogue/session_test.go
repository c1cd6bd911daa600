package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFake = errors.New("extractor down")

type fakeResult struct {
	ext Extraction
	err error
}

// fakeExtractor returns queued results in order and fails once the queue
// is drained. With block set, each call waits for a value on it.
type fakeExtractor struct {
	mu      sync.Mutex
	results []fakeResult
	calls   []string
	ids     []string
	started chan struct{}
	block   chan struct{}
}

func (f *fakeExtractor) queue(ext Extraction) *fakeExtractor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{ext: ext})
	return f
}

func (f *fakeExtractor) fail() *fakeExtractor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{err: errFake})
	return f
}

func (f *fakeExtractor) Extract(ctx context.Context, text, contextID string) (Extraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.ids = append(f.ids, contextID)
	r := fakeResult{err: errFake}
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	started, block := f.started, f.block
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Extraction{}, ctx.Err()
		}
	}
	return r.ext, r.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSaver struct {
	err   error
	saved []Draft
}

func (f *fakeSaver) SaveDraft(ctx context.Context, userID string, d Draft) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, d)
	return len(f.saved), nil
}

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestSession(ex Extractor) *Session {
	return NewSession("s1", "user-1", ex, WithClock(fixedClock()))
}

func TestSubmit_MeetSamScenario(t *testing.T) {
	ex := (&fakeExtractor{}).
		queue(Extraction{
			Fields:  Fields{Task: "Meet", Participants: []string{"Sam"}},
			Missing: []Field{FieldDate, FieldTime, FieldLocations},
		}).
		queue(Extraction{Fields: Fields{Date: "March 3"}})
	s := newTestSession(ex)

	reply, err := s.Submit(context.Background(), "Meet Sam tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "What date is this for?", reply.Text)
	assert.Equal(t, FieldDate, reply.Pending)
	assert.Equal(t, StateCollecting, reply.State)
	assert.Equal(t, FieldNone, reply.Answered)

	d := s.Draft()
	assert.Equal(t, "Meet", d.Task)
	assert.Equal(t, []string{"Sam"}, d.Participants)
	assert.Equal(t, FieldDate, d.Pending)

	reply, err = s.Submit(context.Background(), "March 3")
	require.NoError(t, err)
	assert.Equal(t, "What time would you like to schedule this for?", reply.Text)
	assert.Equal(t, FieldDate, reply.Answered)

	d = s.Draft()
	assert.Equal(t, "March 3", d.Date)
	assert.Equal(t, FieldTime, d.Pending)

	assert.Equal(t, []string{"user-1", "user-1"}, ex.ids)
}

func TestSubmit_FirstTurnTimeout(t *testing.T) {
	ex := &fakeExtractor{block: make(chan struct{})}
	ex.queue(Extraction{Fields: Fields{Task: "never applied"}})
	s := NewSession("s1", "user-1", ex, WithExtractTimeout(20*time.Millisecond))

	reply, err := s.Submit(context.Background(), "Meet Sam tomorrow")
	require.NoError(t, err)

	assert.Equal(t, "I couldn't find any details. What is the task?", reply.Text)
	assert.True(t, reply.ExtractionFailed)

	d := s.Draft()
	assert.Equal(t, *NewDraft(), d)
	assert.Equal(t, FieldNone, d.Pending)
	assert.Equal(t, StateCollecting, s.State())
}

func TestSubmit_FailedFirstTurnRetriesExtraction(t *testing.T) {
	ex := (&fakeExtractor{}).fail().queue(Extraction{Fields: Fields{Task: "call mom"}})
	s := newTestSession(ex)

	_, err := s.Submit(context.Background(), "hmm")
	require.NoError(t, err)

	reply, err := s.Submit(context.Background(), "call mom")
	require.NoError(t, err)

	assert.Equal(t, "call mom", s.Draft().Task)
	assert.Equal(t, FieldDate, reply.Pending)
	assert.Equal(t, 2, ex.callCount())
}

func TestSubmit_FallbackToLiteralOnFailure(t *testing.T) {
	ex := (&fakeExtractor{}).
		queue(Extraction{Fields: Fields{
			Task:         "study",
			Date:         "March 3",
			Time:         "15:00",
			Participants: []string{"Ana"},
		}}).
		fail()
	s := newTestSession(ex)

	reply, err := s.Submit(context.Background(), "study with Ana March 3 at 3pm")
	require.NoError(t, err)
	require.Equal(t, FieldLocations, reply.Pending)

	reply, err = s.Submit(context.Background(), "library")
	require.NoError(t, err)

	d := s.Draft()
	assert.Equal(t, []string{"library"}, d.Locations)
	assert.Equal(t, FieldNone, d.Pending)
	assert.Equal(t, StateComplete, reply.State)
	assert.True(t, reply.ExtractionFailed)
}

func TestSubmit_LiteralWhenExtractionMissesPendingSlot(t *testing.T) {
	ex := (&fakeExtractor{}).
		queue(Extraction{Fields: Fields{Task: "meet"}}).
		queue(Extraction{Fields: Fields{Locations: []string{"cafe"}}})
	s := newTestSession(ex)

	_, err := s.Submit(context.Background(), "meet")
	require.NoError(t, err)

	reply, err := s.Submit(context.Background(), "next friday at the cafe")
	require.NoError(t, err)

	d := s.Draft()
	assert.Equal(t, "next friday at the cafe", d.Date)
	// stray fields are discarded
	assert.Empty(t, d.Locations)
	assert.Equal(t, FieldTime, reply.Pending)
}

func TestSubmit_AnswersInPriorityOrderComplete(t *testing.T) {
	ex := (&fakeExtractor{}).queue(Extraction{})
	s := newTestSession(ex)

	reply, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "What would you like to do?", reply.Text)

	answers := []string{"group project", "2025-03-03", "14:00", "Ana", "library"}
	for i, a := range answers {
		reply, err = s.Submit(context.Background(), a)
		require.NoError(t, err)
		if i < len(answers)-1 {
			assert.Equal(t, StateCollecting, reply.State)
			assert.Equal(t, Prompt(reply.Pending), reply.Text)
		}
	}

	assert.Equal(t, StateComplete, reply.State)
	assert.Equal(t, FieldNone, reply.Pending)
	d := s.Draft()
	assert.True(t, d.IsComplete())
	assert.Equal(t, CompletionSummary(&Draft{
		Task:         "group project",
		Date:         "2025-03-03",
		Time:         "14:00",
		Participants: []string{"Ana"},
		Locations:    []string{"library"},
	}), reply.Text)

	turns := s.Turns()
	require.Len(t, turns, 12)
	for i, turn := range turns {
		assert.Equal(t, i%2 == 0, turn.IsUser, "turn %d", i)
	}
}

func TestSubmit_EmptyInput(t *testing.T) {
	ex := &fakeExtractor{}
	s := newTestSession(ex)

	_, err := s.Submit(context.Background(), "   \n\t")

	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, s.Turns())
	assert.Zero(t, ex.callCount())
}

func TestSubmit_MissingIdentity(t *testing.T) {
	ex := &fakeExtractor{}
	s := NewSession("s1", "", ex)

	_, err := s.Submit(context.Background(), "Meet Sam tomorrow")

	assert.ErrorIs(t, err, ErrMissingIdentity)
	assert.Empty(t, s.Turns())
	assert.Zero(t, ex.callCount())
}

func TestSubmit_EchoesUserTurnAndRejectsWhileBusy(t *testing.T) {
	ex := &fakeExtractor{started: make(chan struct{}), block: make(chan struct{})}
	ex.queue(Extraction{Fields: Fields{Task: "meet"}})
	s := newTestSession(ex)

	done := make(chan Reply)
	go func() {
		reply, err := s.Submit(context.Background(), "meet")
		assert.NoError(t, err)
		done <- reply
	}()

	<-ex.started

	turns := s.Turns()
	require.Len(t, turns, 1)
	assert.True(t, turns[0].IsUser)
	assert.Equal(t, "meet", turns[0].Text)
	assert.True(t, s.Snapshot().Busy)

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, s.Turns(), 1)

	close(ex.block)
	reply := <-done

	assert.Equal(t, "What date is this for?", reply.Text)
	assert.Len(t, s.Turns(), 2)
	assert.Equal(t, 1, ex.callCount())
}

func TestSubmit_AfterCompleteStartsFreshDraft(t *testing.T) {
	ex := (&fakeExtractor{}).
		queue(Extraction{Fields: Fields{
			Task:         "meet",
			Date:         "March 3",
			Time:         "3pm",
			Participants: []string{"Sam"},
			Locations:    []string{"library"},
		}}).
		queue(Extraction{Fields: Fields{Task: "call", Participants: []string{"Ana"}}})
	s := newTestSession(ex)

	reply, err := s.Submit(context.Background(), "meet Sam March 3 3pm at the library")
	require.NoError(t, err)
	require.Equal(t, StateComplete, reply.State)

	reply, err = s.Submit(context.Background(), "call Ana")
	require.NoError(t, err)

	d := s.Draft()
	assert.Equal(t, "call", d.Task)
	assert.Empty(t, d.Date)
	assert.Equal(t, []string{"Ana"}, d.Participants)
	assert.Empty(t, d.Locations)
	assert.Equal(t, FieldDate, reply.Pending)
	assert.Len(t, s.Turns(), 4)
}

func TestReset(t *testing.T) {
	ex := (&fakeExtractor{}).queue(Extraction{Fields: Fields{Task: "meet", Participants: []string{"Sam"}}})
	s := newTestSession(ex)

	_, err := s.Submit(context.Background(), "meet Sam")
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), "tomorrow")
	require.NoError(t, err)

	s.Reset()

	assert.Equal(t, *NewDraft(), s.Draft())
	assert.Empty(t, s.Turns())
	assert.Equal(t, StateCollecting, s.State())
}

func TestReset_DiscardsInFlightResult(t *testing.T) {
	ex := &fakeExtractor{started: make(chan struct{}), block: make(chan struct{})}
	ex.queue(Extraction{Fields: Fields{Task: "meet"}})
	s := newTestSession(ex)

	errCh := make(chan error)
	go func() {
		_, err := s.Submit(context.Background(), "meet")
		errCh <- err
	}()

	<-ex.started
	s.Reset()
	close(ex.block)

	assert.ErrorIs(t, <-errCh, ErrSessionReset)
	assert.Empty(t, s.Turns())
	assert.Equal(t, *NewDraft(), s.Draft())
}

func completeSession(t *testing.T) *Session {
	t.Helper()
	ex := (&fakeExtractor{}).queue(Extraction{Fields: Fields{
		Task:         "meet",
		Date:         "2025-03-03",
		Time:         "15:00",
		Participants: []string{"Sam"},
		Locations:    []string{"library"},
	}})
	s := newTestSession(ex)
	reply, err := s.Submit(context.Background(), "meet Sam on March 3 at 3pm in the library")
	require.NoError(t, err)
	require.Equal(t, StateComplete, reply.State)
	return s
}

func TestSave_Incomplete(t *testing.T) {
	s := newTestSession((&fakeExtractor{}).queue(Extraction{Fields: Fields{Task: "meet"}}))
	_, err := s.Submit(context.Background(), "meet")
	require.NoError(t, err)

	saver := &fakeSaver{}
	_, err = s.Save(context.Background(), saver)

	assert.ErrorIs(t, err, ErrDraftIncomplete)
	assert.Empty(t, saver.saved)
}

func TestSave_FailureKeepsDraft(t *testing.T) {
	s := completeSession(t)
	before := s.Draft()
	turns := len(s.Turns())

	_, err := s.Save(context.Background(), &fakeSaver{err: errors.New("db down")})

	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Equal(t, before, s.Draft())
	assert.Equal(t, StateComplete, s.State())
	assert.Len(t, s.Turns(), turns)

	// retry works
	saver := &fakeSaver{}
	id, err := s.Save(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestSave_SuccessConsumesDraft(t *testing.T) {
	s := completeSession(t)
	saver := &fakeSaver{}

	id, err := s.Save(context.Background(), saver)
	require.NoError(t, err)

	assert.Equal(t, 1, id)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "meet", saver.saved[0].Task)
	assert.Equal(t, []string{"library"}, saver.saved[0].Locations)

	assert.Equal(t, *NewDraft(), s.Draft())
	assert.Equal(t, StateCollecting, s.State())

	_, err = s.Save(context.Background(), saver)
	assert.ErrorIs(t, err, ErrDraftIncomplete)
	assert.Len(t, saver.saved, 1)
}
