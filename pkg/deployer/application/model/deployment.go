package model

type RepositoryID = string

type TargetKey = string

type ExecutionMode string

const (
	ModeLocal  ExecutionMode = "local"
	ModeRemote ExecutionMode = "remote"
)

// RemoteConfig describes how to reach a remote deployment host.
type RemoteConfig struct {
	Host    string
	Port    int
	User    string
	KeyType string
	KeyPath string
}

// Target is one deployment destination within a repository's chain.
// Remote is set iff Mode == ModeRemote.
type Target struct {
	Key          TargetKey
	Mode         ExecutionMode
	Branch       string
	DeployDir    string
	CloneURL     string
	CreateDir    bool
	ForceRebuild bool
	Sudo         bool
	Remote       *RemoteConfig
	Tasks        []string
	TasksOnly    bool
}

type TargetStatus string

const (
	StatusSucceeded          TargetStatus = "succeeded"
	StatusFailed             TargetStatus = "failed"
	StatusSkippedBranch      TargetStatus = "skipped-branch-mismatch"
	StatusSkippedUnknownMode TargetStatus = "skipped-unknown-mode"
)

type TargetOutcome struct {
	Key    TargetKey
	Status TargetStatus
	Detail string
}

// Failed reports whether the outcome counts against the chain. An unknown
// target mode is a misconfiguration, not a branch gate, so it counts too.
func (o TargetOutcome) Failed() bool {
	return o.Status == StatusFailed || o.Status == StatusSkippedUnknownMode
}

// ChainResult is the record of one chain run over a repository's targets.
type ChainResult struct {
	RunID      string
	Repository RepositoryID
	Branch     string
	Cancelled  bool
	Outcomes   []TargetOutcome
}

func (r ChainResult) FirstFailure() (string, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.Failed() {
			return outcome.Detail, true
		}
	}
	return "", false
}
