package player

// Locator addresses a fetchable resource: a playlist, a variant stream, or a
// media segment.
type Locator string

// Segment is a single fetchable, independently decodable chunk of the media
// timeline. Immutable once parsed.
type Segment struct {
	URL      Locator
	Duration float64 // seconds
}

// Playlist is the parsed manifest: an ordered segment sequence plus ordered
// variant (quality) references. Produced atomically by Parse; it is either
// fully present or parsing failed.
type Playlist struct {
	Segments []Segment
	Variants []Locator
}

// Quality selects a variant stream at item-load time. The zero value means
// automatic selection; the core never re-evaluates the choice.
type Quality struct {
	Explicit bool
	Index    int
}

// ItemStatus describes whether an item can be played.
type ItemStatus int

const (
	StatusUnknown ItemStatus = iota
	StatusReadyToPlay
	StatusFailed
)

// String returns the status name.
func (s ItemStatus) String() string {
	switch s {
	case StatusReadyToPlay:
		return "ready_to_play"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PresentationSize is the pixel size of decoded video output, as reported by
// the first delivered frame.
type PresentationSize struct {
	Width  int
	Height int
}

// PlayerItem aggregates everything known about the media currently loaded:
// the source locator, the parsed playlist, buffering flags, load status and
// the append-only error log. A new Load replaces the item wholesale; the
// replaced item receives no further mutation.
type PlayerItem struct {
	URL              Locator
	Playlist         *Playlist
	Segments         []Segment
	Variants         []Locator
	Quality          Quality
	BufferEmpty      bool
	LikelyToKeepUp   bool
	BufferFull       bool
	Status           ItemStatus
	PresentationSize PresentationSize
	ErrorLog         *ErrorLog
	ErrorOccurred    bool
}

// NewPlayerItem returns an item for the given locator with an empty error log
// and unknown status.
func NewPlayerItem(url Locator) *PlayerItem {
	return &PlayerItem{
		URL:      url,
		ErrorLog: NewErrorLog(),
	}
}
