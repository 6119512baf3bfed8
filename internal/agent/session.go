package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/render"
)

// Session is a deterministic stand-in for a chat agent: every user turn is
// appended to the order text and the whole text is parsed again, so details
// given across several messages accumulate into one order.
type Session struct {
	engine *core.Engine

	mu         sync.Mutex
	turns      []string
	transcript strings.Builder
	last       *core.Result
}

func NewSession(engine *core.Engine) *Session {
	return &Session{engine: engine}
}

// Send records one user turn and returns the reply (the confirmation message).
func (s *Session) Send(ctx context.Context, turn string) (string, error) {
	turn = strings.TrimSpace(turn)

	s.mu.Lock()
	defer s.mu.Unlock()

	if turn != "" {
		s.turns = append(s.turns, turn)
	}
	res, err := s.engine.Process(ctx, strings.Join(s.turns, "\n"))
	if err != nil {
		return "", err
	}
	s.last = &res

	if turn != "" {
		s.transcript.WriteString("User: " + turn + "\n")
		s.transcript.WriteString("Agent: " + res.Confirmation + "\n")
	}
	return res.Confirmation, nil
}

// Turns reports how many non-empty user turns were received.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Transcript returns the alternating User/Agent log, trimmed.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.transcript.String())
}

// Result returns the latest parse, if any turn has been sent.
func (s *Session) Result() (core.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return core.Result{}, false
	}
	return *s.last, true
}

// CurrentOrder returns the label JSON of the order as understood so far.
// Before any turn it renders an empty order.
func (s *Session) CurrentOrder() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		raw, err := render.LabelJSON(s.engine.ParseOrder(""))
		return string(raw), err
	}
	return string(s.last.Label), nil
}
