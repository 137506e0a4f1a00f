package event

// Status is the result of classifying a record's slots.
type Status int

const (
	Complete Status = iota
	MissingStartDate
	MissingStartTime
	MissingKey
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case MissingStartDate:
		return "missing startDate"
	case MissingStartTime:
		return "missing startTime"
	case MissingKey:
		return "missing key"
	}
	return "unknown"
}

// Classify names the single slot still missing from the record, or Complete.
// It is a pure function of the record's current fields and is recomputed
// every turn, never cached.
//
// A start time of exactly midnight on a non-all-day record reads as "no time
// known": the extractor zeroes the hour when it could not find one, so a
// literal-midnight event is indistinguishable from a date-only mention. This
// is a documented limitation carried over from the original behavior.
func Classify(r *Record) Status {
	switch {
	case r.StartDate == nil:
		return MissingStartDate
	case !r.AllDay && r.StartDate.Hour() == 0:
		return MissingStartTime
	case r.Key == "":
		return MissingKey
	}
	return Complete
}
