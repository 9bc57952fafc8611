package domain

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational turn. Insertion order is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Step sentinels. Any other NextStep value names a registered node.
const (
	// StepEnd is the terminal sentinel: the run loop stops when a node
	// returns it.
	StepEnd = "__end__"
)

// ExecutionStatus defines the current mode of the run loop mechanics.
type ExecutionStatus string

const (
	StatusActive        ExecutionStatus = "active"         // Normal operation
	StatusAwaitingInput ExecutionStatus = "awaiting_input" // Paused, waiting for the host to supply input
	StatusTerminated    ExecutionStatus = "terminated"     // Terminal sentinel reached
)

// State is the record threaded through a workflow run. It is a fixed,
// typed record: nodes communicate exclusively through these fields, never
// through ad hoc keys. The run loop owns the state for the duration of one
// execution and passes it by pointer to each node.
type State struct {
	// Messages is the ordered conversation transcript.
	Messages []Message `json:"messages"`

	// NextStep names the node to execute next, or StepEnd to stop.
	// Empty means "entry node" (only valid before the first step).
	NextStep string `json:"next_step"`

	// Status indicates whether the run is active, suspended for input,
	// or terminated.
	Status ExecutionStatus `json:"status"`

	// Input holds the value supplied by the host at a suspension point.
	// The run loop installs it before resuming; the resumed node consumes
	// it. Nodes never perform blocking reads themselves.
	Input string `json:"input,omitempty"`

	// History tracks the nodes visited, in execution order.
	History []string `json:"history,omitempty"`
}

// NewState creates a clean state positioned at the entry node.
func NewState() *State {
	return &State{
		Messages: []Message{},
		Status:   StatusActive,
	}
}

// Append adds a message to the transcript.
func (s *State) Append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// LastMessage returns the most recent message, or a zero Message when the
// transcript is empty.
func (s *State) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// Goto routes the run to the named node.
func (s *State) Goto(node string) {
	s.NextStep = node
	s.Status = StatusActive
}

// Await routes the run to the named node but suspends first: the run loop
// will obtain a value from its input provider, install it into Input, and
// only then execute the node.
func (s *State) Await(node string) {
	s.NextStep = node
	s.Status = StatusAwaitingInput
}

// End marks the run as finished.
func (s *State) End() {
	s.NextStep = StepEnd
	s.Status = StatusTerminated
}

// Clone returns a copy with its own backing slices, so a stored snapshot
// cannot be mutated through the original pointer.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = make([]Message, len(s.Messages))
	copy(next.Messages, s.Messages)
	next.History = make([]string, len(s.History))
	copy(next.History, s.History)
	return &next
}
