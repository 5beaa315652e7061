package models

import "time"

// CommandStatus is the lifecycle state of an agent command
type CommandStatus string

const (
	CommandPending   CommandStatus = "Pending"
	CommandRunning   CommandStatus = "Running"
	CommandCompleted CommandStatus = "Completed"
	CommandFailed    CommandStatus = "Failed"
)

// IsTerminal reports whether no further transition is allowed
func (s CommandStatus) IsTerminal() bool {
	return s == CommandCompleted || s == CommandFailed
}

// CanTransition reports whether next may follow s. Commands move
// Pending → Running → Completed|Failed; a pending command may also fail
// before it is dispatched.
func (s CommandStatus) CanTransition(next CommandStatus) bool {
	switch s {
	case CommandPending:
		return next == CommandRunning || next == CommandFailed
	case CommandRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// AgentCommand records one natural-language command sent to an assistant
type AgentCommand struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Provider    Provider      `json:"provider"`
	SubmittedAt time.Time     `json:"submitted_at"`
	Status      CommandStatus `json:"status"`
	Output      string        `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Advance moves the command to next and reports whether the transition was allowed
func (c *AgentCommand) Advance(next CommandStatus) bool {
	if !c.Status.CanTransition(next) {
		return false
	}
	c.Status = next
	return true
}

// AgentSession is an interaction window scoped to one repository
type AgentSession struct {
	ID         string         `json:"id"`
	Repository Repository     `json:"repository"`
	Commands   []AgentCommand `json:"commands"`
	Changes    []FileChange   `json:"changes"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	Active     bool           `json:"active"`
}

// Snapshot returns a copy that shares no mutable state with the receiver
func (s *AgentSession) Snapshot() AgentSession {
	cp := *s
	cp.Commands = append([]AgentCommand(nil), s.Commands...)
	cp.Changes = append([]FileChange(nil), s.Changes...)
	if s.EndTime != nil {
		end := *s.EndTime
		cp.EndTime = &end
	}
	return cp
}

// Duration returns how long the session has been (or was) open
func (s *AgentSession) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}
