package entities

import "time"

// Change is a who-plus-when stamp recorded on every create and modify.
type Change struct {
	UserID    string `json:"userId"`
	VREID     string `json:"vreId"`
	Timestamp int64  `json:"timestamp"`
}

// NewChange stamps the current wall clock in milliseconds.
func NewChange(userID, vreID string) Change {
	return Change{
		UserID:    userID,
		VREID:     vreID,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (c Change) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

func (c Change) IsZero() bool {
	return c == Change{}
}

// Datable is a date-like value in ISO-8601 form, possibly partial
// ("1646", "1646-09", "1646-09-18"). It is stored as its string form.
type Datable string

func (d Datable) String() string {
	return string(d)
}

func (d Datable) IsSet() bool {
	return d != ""
}
