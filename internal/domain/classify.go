package domain

// Classify partitions readings into the three persisted groups in a single
// linear pass, preserving the original order within each group. A reading
// whose concrete type is not one of the three kinds is skipped.
func Classify(readings []Reading) (vitals []Vital, locations []Gps, events []Event) {
	for _, r := range readings {
		switch v := r.(type) {
		case Vital:
			vitals = append(vitals, v)
		case Gps:
			locations = append(locations, v)
		case Event:
			events = append(events, v)
		}
	}
	return vitals, locations, events
}
