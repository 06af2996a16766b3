package domain

// ListingStatus is the funding lifecycle state of a listing.
type ListingStatus string

const (
	StatusDraft  ListingStatus = "draft"
	StatusLive   ListingStatus = "live"
	StatusClosed ListingStatus = "closed"
)

// transitions lists the permitted status changes. closed is terminal.
var transitions = map[ListingStatus][]ListingStatus{
	StatusDraft: {StatusLive},
	StatusLive:  {StatusDraft, StatusClosed},
}

// ParseListingStatus returns the status for s and whether it names a known one.
func ParseListingStatus(s string) (ListingStatus, bool) {
	switch ListingStatus(s) {
	case StatusDraft, StatusLive, StatusClosed:
		return ListingStatus(s), true
	}
	return "", false
}

// CanTransition reports whether a listing in s may move to next.
func (s ListingStatus) CanTransition(next ListingStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Editable reports whether terms and content fields may change.
func (s ListingStatus) Editable() bool {
	return s == StatusDraft
}

// Investable reports whether the listing admits new investments.
func (s ListingStatus) Investable() bool {
	return s == StatusLive
}
