package domain

// Reading kinds as they appear in the wire "type" tag.
const (
	KindVital = "vital"
	KindGps   = "gps"
	KindEvent = "event"
)

// Reading is a single timestamped observation submitted by a device. The
// concrete types Vital, Gps and Event are the only kinds the decoder
// produces; Classify skips anything else.
type Reading interface {
	Kind() string
}

// Vital is a numeric metric sample (heart rate, noise level, ...) identified
// by an integer metric code.
type Vital struct {
	Time string  `json:"t"`
	Code int     `json:"code"`
	Val  float64 `json:"val"`
}

// Gps is a geolocation fix. Acc is the reported accuracy in meters; nil when
// the device did not report one.
type Gps struct {
	Time string   `json:"t"`
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Acc  *float64 `json:"acc,omitempty"`
}

// Event is a discrete labeled occurrence with an optional text value and
// free-form metadata.
type Event struct {
	Time     string         `json:"t"`
	Label    string         `json:"label"`
	ValText  *string        `json:"val_text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (Vital) Kind() string { return KindVital }
func (Gps) Kind() string   { return KindGps }
func (Event) Kind() string { return KindEvent }
