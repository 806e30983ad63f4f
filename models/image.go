// Package models defines data structures for the fetcher.
package models

// ImageRequest is one user supplied URL and its 1-based position in the batch.
type ImageRequest struct {
	URL   string
	Index int
}

// FetchKind tags the variant held by a FetchResult.
type FetchKind int

const (
	FetchSuccess FetchKind = iota
	FetchInvalidURL
	FetchNetworkError
	FetchNonImage
	FetchTooLarge
)

func (k FetchKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchInvalidURL:
		return "invalid_url"
	case FetchNetworkError:
		return "network_error"
	case FetchNonImage:
		return "non_image_content_type"
	case FetchTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of retrieving a single URL.
//
// Body and ContentType are set for FetchSuccess. ContentType also carries the
// declared header for FetchNonImage, DeclaredSize the offending size for
// FetchTooLarge. Err is non-nil for every kind except FetchSuccess.
type FetchResult struct {
	Kind         FetchKind
	URL          string
	Body         []byte
	ContentType  string
	DeclaredSize int64
	Err          error
}

// OK reports whether the fetch produced image bytes.
func (r FetchResult) OK() bool {
	return r.Kind == FetchSuccess
}

// CommitKind tags the variant held by a CommitResult.
type CommitKind int

const (
	CommitStored CommitKind = iota
	CommitDuplicate
)

func (k CommitKind) String() string {
	if k == CommitDuplicate {
		return "duplicate"
	}
	return "stored"
}

// CommitResult is the outcome of handing fetched bytes to the image store.
type CommitResult struct {
	Kind        CommitKind
	Path        string
	Filename    string
	Fingerprint string
	Size        int
}

// Outcome classifies what happened to one URL over the whole pipeline.
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeError     Outcome = "error"
)

// Record is the per-URL line written to run reports.
type Record struct {
	Index       int     `json:"index"`
	URL         string  `json:"url"`
	Outcome     Outcome `json:"outcome"`
	Category    string  `json:"category,omitempty"`
	Detail      string  `json:"detail,omitempty"`
	Path        string  `json:"path,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Bytes       int     `json:"bytes"`
}

// RunSummary holds the counters for one invocation.
type RunSummary struct {
	Requested   int
	Successful  int
	Duplicates  int
	Errors      int
	StoredBytes int64
	Interrupted bool
}
