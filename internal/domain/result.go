package domain

// Kind classifies the outcome of a session operation.
type Kind int

const (
	KindOK Kind = iota
	// KindNoop means nothing was requested, e.g. no file supplied.
	KindNoop
	// KindEmpty means the input was blank.
	KindEmpty
	KindCredential
	KindModelNotFound
	KindIngestion
	KindInference
	// KindBusy means an earlier request on the same session is still running.
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNoop:
		return "noop"
	case KindEmpty:
		return "empty"
	case KindCredential:
		return "credential"
	case KindModelNotFound:
		return "model_not_found"
	case KindIngestion:
		return "ingestion"
	case KindInference:
		return "inference"
	case KindBusy:
		return "busy"
	}
	return "unknown"
}

// Result is the outcome of an ingestion or response call. Text is what the
// user sees; Detail holds the underlying error text on failure.
type Result struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Detail string `json:"detail,omitempty"`
}

// Ok wraps successful output.
func Ok(text string) Result { return Result{Kind: KindOK, Text: text} }

// Fail builds a failure result.
func Fail(kind Kind, text, detail string) Result {
	return Result{Kind: kind, Text: text, Detail: detail}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

// Failed reports whether the call failed, as opposed to succeeding or
// being a no-op.
func (r Result) Failed() bool {
	switch r.Kind {
	case KindOK, KindNoop, KindEmpty:
		return false
	}
	return true
}
