package launcher

// State is a phase of one launch.
type State int

// Launch states in the order they can be visited.
const (
	StateCheckFingerprint State = iota
	StateBuild
	StateSkipBuild
	StateInvoke
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCheckFingerprint:
		return "CHECK_FINGERPRINT"
	case StateBuild:
		return "BUILD"
	case StateSkipBuild:
		return "SKIP_BUILD"
	case StateInvoke:
		return "INVOKE"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}
