package store

import "time"

// PointRecord is the row shape of a metric point in the embedded store.
// TagKey is the canonical "k=v,k=v" rendering of Tags and, together with
// Measurement and Timestamp, identifies the point.
type PointRecord struct {
	Measurement string
	Timestamp   time.Time
	TagKey      string
	Tags        map[string]string
	Fields      map[string]float64
}
