package domain

import "fmt"

// Kind tags a TranscriptResult variant. The same values are stored as the
// transcript status column.
type Kind string

const (
	KindFull       Kind = "full"
	KindPartial    Kind = "partial"
	KindProcessing Kind = "processing"
	KindNotFound   Kind = "not_found"
	KindNoMatch    Kind = "no_match"
	KindError      Kind = "error"
)

// Kinds lists every TranscriptResult kind in a stable order.
var Kinds = []Kind{KindFull, KindPartial, KindProcessing, KindNotFound, KindNoMatch, KindError}

// ParseKind validates a kind string such as one read from configuration.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transcript kind %q", s)
}

// ResultMeta is carried by every TranscriptResult variant.
type ResultMeta struct {
	// Source names the provider that produced the result.
	Source string
	// CreditsConsumed is a best-effort cost estimate for metered providers.
	CreditsConsumed int
}

// TranscriptResult is the outcome of one provider lookup. It is a closed set:
// Full, Partial, Processing, NotFound, NoMatch and ErrorResult are the only
// implementations.
type TranscriptResult interface {
	Kind() Kind
	Meta() ResultMeta
	isTranscriptResult()
}

// Full is a complete transcript.
type Full struct {
	ResultMeta
	Text      string
	WordCount int
}

// Partial is an incomplete but usable transcript.
type Partial struct {
	ResultMeta
	Text      string
	WordCount int
	Reason    string
}

// Processing means the provider is generating the transcript asynchronously.
type Processing struct {
	ResultMeta
}

// NotFound means the provider knows the episode but has no transcript for it.
type NotFound struct {
	ResultMeta
}

// NoMatch means the show or episode is missing from the provider's catalog.
type NoMatch struct {
	ResultMeta
	Reason string
}

// ErrorResult means the lookup failed. Message feeds quota and retry classification.
type ErrorResult struct {
	ResultMeta
	Message string
}

func (Full) Kind() Kind        { return KindFull }
func (Partial) Kind() Kind     { return KindPartial }
func (Processing) Kind() Kind  { return KindProcessing }
func (NotFound) Kind() Kind    { return KindNotFound }
func (NoMatch) Kind() Kind     { return KindNoMatch }
func (ErrorResult) Kind() Kind { return KindError }

func (r Full) Meta() ResultMeta        { return r.ResultMeta }
func (r Partial) Meta() ResultMeta     { return r.ResultMeta }
func (r Processing) Meta() ResultMeta  { return r.ResultMeta }
func (r NotFound) Meta() ResultMeta    { return r.ResultMeta }
func (r NoMatch) Meta() ResultMeta     { return r.ResultMeta }
func (r ErrorResult) Meta() ResultMeta { return r.ResultMeta }

func (Full) isTranscriptResult()        {}
func (Partial) isTranscriptResult()     {}
func (Processing) isTranscriptResult()  {}
func (NotFound) isTranscriptResult()    {}
func (NoMatch) isTranscriptResult()     {}
func (ErrorResult) isTranscriptResult() {}

// WithMeta returns a copy of r carrying meta.
func WithMeta(r TranscriptResult, meta ResultMeta) TranscriptResult {
	switch v := r.(type) {
	case Full:
		v.ResultMeta = meta
		return v
	case Partial:
		v.ResultMeta = meta
		return v
	case Processing:
		v.ResultMeta = meta
		return v
	case NotFound:
		v.ResultMeta = meta
		return v
	case NoMatch:
		v.ResultMeta = meta
		return v
	case ErrorResult:
		v.ResultMeta = meta
		return v
	default:
		panic(fmt.Sprintf("domain: unhandled transcript result %T", r))
	}
}

// FallbackResult is the outcome of a direct audio transcription attempt.
// FileSizeMB and ProcessingTimeMs are populated whenever they are known so
// callers can estimate duration-based cost.
type FallbackResult struct {
	Success          bool
	Transcript       string
	Error            string
	FileSizeMB       float64
	ProcessingTimeMs int64
}
