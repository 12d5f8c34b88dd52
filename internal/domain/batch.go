package domain

import "encoding/json"

// Metadata identifies the submitting device.
type Metadata struct {
	DeviceID  string `json:"device_id"`
	UserID    string `json:"user_id,omitempty"`
	ModelName string `json:"model_name,omitempty"`
	Version   string `json:"version,omitempty"`
}

// EffectiveUserID falls back to the device id when the client omits user_id.
func (m Metadata) EffectiveUserID() string {
	if m.UserID != "" {
		return m.UserID
	}
	return m.DeviceID
}

// Batch is one client submission: device metadata plus an ordered sequence of
// readings. It is constructed per request and consumed exactly once.
type Batch struct {
	Metadata Metadata
	Data     []Reading
}

// UnmarshalJSON decodes and validates a batch in one pass. Numeric floors,
// timestamp format and the kind tag are all checked here; the first violation
// aborts the decode with a *SchemaError.
func (b *Batch) UnmarshalJSON(p []byte) error {
	var envelope struct {
		Metadata Metadata          `json:"metadata"`
		Data     []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(p, &envelope); err != nil {
		return err
	}
	if envelope.Metadata.DeviceID == "" {
		return schemaErrorf("metadata.device_id", "required")
	}

	readings := make([]Reading, 0, len(envelope.Data))
	for i, raw := range envelope.Data {
		r, err := decodeReading(i, raw)
		if err != nil {
			return err
		}
		readings = append(readings, r)
	}

	b.Metadata = envelope.Metadata
	b.Data = readings
	return nil
}

func decodeReading(i int, raw json.RawMessage) (Reading, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, schemaErrorf(readingField(i, "type"), "malformed reading")
	}

	switch tag.Type {
	case KindVital:
		var v Vital
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, schemaErrorf(readingField(i, "type"), "malformed vital reading")
		}
		if err := v.validate(i); err != nil {
			return nil, err
		}
		return v, nil
	case KindGps:
		var g Gps
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, schemaErrorf(readingField(i, "type"), "malformed gps reading")
		}
		if err := g.validate(i); err != nil {
			return nil, err
		}
		return g, nil
	case KindEvent:
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, schemaErrorf(readingField(i, "type"), "malformed event reading")
		}
		if err := e.validate(i); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, schemaErrorf(readingField(i, "type"), "unknown reading kind %q", tag.Type)
	}
}
