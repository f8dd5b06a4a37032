package harness

// envelope is the request document written to the child's stdin. It carries
// the invocation context plus the calling convention: where the code lives
// and which symbol to invoke. The child never receives anything else, and the
// harness never inspects the child's type system.
type envelope struct {
	Parameters  map[string]any    `json:"parameters"`
	Credentials map[string]string `json:"credentials"`
	Globals     map[string]string `json:"globals"`
	SourceDir   string            `json:"source_dir"`
	Entrypoint  entrypointRef     `json:"entrypoint"`
}

type entrypointRef struct {
	Module string `json:"module"`
	Target string `json:"target"`
}

// childResult is the response document the child writes to the result file:
// either a success with an opaque response payload, or a structured error.
type childResult struct {
	Status    string `json:"status"`
	Response  any    `json:"response,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

const (
	childStatusSuccess = "success"
	childStatusError   = "error"

	childKindResolution = "resolution"
	childKindExecution  = "execution"
)
