package dance

// TrackInfo describes one entry of an area's music queue. Only URL is
// required; the rest is whatever the metadata provider could resolve.
type TrackInfo struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration int64  `json:"duration,omitempty"` // milliseconds, 0 when unknown
}

func TracksEqual(a, b []TrackInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
