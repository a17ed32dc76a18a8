package model

// CommandResult is the shared outcome contract for local and remote command
// execution. Benign is set when a non-zero exit was matched against a known
// harmless stderr marker and recovered.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Benign   bool
}

// PullResult reports whether a pull fetched new commits.
type PullResult struct {
	Changed bool
	Output  string
}

type EventStatus string

const (
	EventSuccessful EventStatus = "successful"
	EventFailed     EventStatus = "failed"
	EventIgnored    EventStatus = "ignored"
)
