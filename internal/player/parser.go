package player

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	tagStreamInf = "#EXT-X-STREAM-INF"
	tagExtInf    = "#EXTINF:"
)

// ErrInvalidPlaylistText is returned when the playlist bytes cannot be
// decoded as text.
var ErrInvalidPlaylistText = errors.New("playlist is not valid UTF-8 text")

// Parse turns playlist text into an ordered segment list and a list of
// variant references.
//
// The scan keeps a single piece of pending state: a duration from an #EXTINF
// line awaiting its locator line. Consecutive #EXTINF lines overwrite the
// pending value (last wins, no error); an unparsable duration clears it. A
// bare non-comment line emits a segment only when a pending duration exists,
// otherwise it is ignored. #EXT-X-STREAM-INF lines yield a variant locator
// only when the tag payload is a bare locator; attribute lists yield nothing
// and the variant URI on the following line is not associated.
//
// A zero-segment result is valid. Parse fails only on undecodable input.
func Parse(text string) (*Playlist, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidPlaylistText
	}

	pl := &Playlist{}

	var pending float64
	hasPending := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, tagStreamInf):
			if v, ok := extractVariantLocator(line); ok {
				pl.Variants = append(pl.Variants, v)
			}

		case strings.HasPrefix(line, tagExtInf):
			d, ok := parseExtInfDuration(line)
			// An unparsable numeric field still discards any stale pending
			// value; a parsable one overwrites it without emitting a segment.
			pending, hasPending = d, ok

		case strings.HasPrefix(line, "#"):
			// Unrecognized tags and comments are ignored.

		default:
			if hasPending {
				pl.Segments = append(pl.Segments, Segment{URL: Locator(line), Duration: pending})
				pending, hasPending = 0, false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return pl, nil
}

// extractVariantLocator pulls a locator out of a #EXT-X-STREAM-INF line.
// Only a bare locator in the tag payload qualifies; attribute lists
// (key=value pairs) yield none.
func extractVariantLocator(line string) (Locator, bool) {
	rest := strings.TrimPrefix(line, tagStreamInf)
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.Contains(rest, "=") {
		return "", false
	}
	return Locator(rest), true
}

// parseExtInfDuration parses the numeric field of an #EXTINF line, up to the
// first comma. ok is false when the field is not a number.
func parseExtInfDuration(line string) (d float64, ok bool) {
	value := strings.TrimPrefix(line, tagExtInf)
	if i := strings.Index(value, ","); i >= 0 {
		value = value[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
