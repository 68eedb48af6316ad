package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long a request waits for a human
const DefaultTimeout = 5 * time.Minute

// TimeoutReason is recorded when nobody answered in time
const TimeoutReason = "Timeout - no response received"

// ErrClosed is returned when the channel stops delivering events mid-request
var ErrClosed = errors.New("approval: channel closed")

// Outcome is the final answer to a request
type Outcome string

const (
	OutcomeApproved Outcome = "approve"
	OutcomeRejected Outcome = "reject"
	OutcomeTimedOut Outcome = "timeout"
)

// Decision is a request's outcome plus the reviewer's reason, if any
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Approved reports whether the draft may be published
func (d Decision) Approved() bool { return d.Outcome == OutcomeApproved }

// Draft is the content put in front of the reviewer
type Draft struct {
	Title    string // heading of the approval message, DefaultTitle when empty
	Text     string
	ImageURL string
}

// DefaultTitle heads approval messages for posts
const DefaultTitle = "New Post for Approval"

// Channel carries requests to a reviewer and their answers back
type Channel interface {
	// Listen starts delivering reviewer events until ctx is done
	Listen(ctx context.Context) (<-chan Event, error)
	// Send presents text with approve and reject buttons bound to token
	Send(ctx context.Context, token, text string) error
	// Notify sends a plain message to the reviewer
	Notify(ctx context.Context, text string) error
}

// Gate asks a human to approve drafts
type Gate struct {
	channel Channel
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Gate
type Option func(*Gate)

// WithTimeout sets how long a request waits
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a Gate over channel
func NewGate(channel Channel, opts ...Option) *Gate {
	g := &Gate{
		channel: channel,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request sends draft for review and blocks until the reviewer decides, the
// timeout fires or ctx is done. A reject is only final once the reviewer has
// sent a reason.
func (g *Gate) Request(ctx context.Context, draft Draft) (Decision, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := g.channel.Listen(listenCtx)
	if err != nil {
		return Decision{}, fmt.Errorf("approval: listen: %w", err)
	}

	token := uuid.NewString()
	if err := g.channel.Send(ctx, token, FormatDraft(draft)); err != nil {
		return Decision{}, fmt.Errorf("approval: send: %w", err)
	}
	g.logger.Info("sent draft for approval", "token", token, "timeout", g.timeout)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	m := newMachine(token)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return Decision{}, ErrClosed
			}
			if !m.apply(ev) {
				continue
			}
			g.acknowledge(ctx, m, draft)
			if m.done() {
				return m.decision(), nil
			}
		case <-timer.C:
			g.logger.Warn("approval timed out", "token", token, "timeout", g.timeout)
			m.timeout()
			return m.decision(), nil
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		}
	}
}

// acknowledge tells the reviewer what their last action did
func (g *Gate) acknowledge(ctx context.Context, m *machine, draft Draft) {
	var text string
	switch m.state {
	case StateApproved:
		text = "APPROVED\n\n" + draft.Text
		if draft.ImageURL != "" {
			text += "\n\nImage: " + draft.ImageURL
		}
	case StateAwaitingReason:
		text = "REJECTED\n\nPlease reply with the reason for rejection.\n" +
			"This feedback helps improve future posts.\n\n" +
			"Examples: 'Too promotional' or 'Wrong tone'"
	case StateRejected:
		text = "Feedback recorded!\n\nReason: " + m.reason
	default:
		return
	}
	if err := g.channel.Notify(ctx, text); err != nil {
		g.logger.Warn("failed to notify reviewer", "error", err)
	}
}

// FormatDraft renders the approval message
func FormatDraft(d Draft) string {
	title := d.Title
	if title == "" {
		title = DefaultTitle
	}
	text := fmt.Sprintf("%s\n\n%s\n\nCharacters: %d", title, d.Text, len([]rune(d.Text)))
	if d.ImageURL != "" {
		text += "\n\nImage will be attached: " + d.ImageURL
	}
	return text
}
