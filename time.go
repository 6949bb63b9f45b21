package zdc

import (
	"time"

	"github.com/pkg/errors"
)

// Timestamp is a UTC timestamp with one-second resolution.
// It marshals to and from RFC 3339 text.
type Timestamp struct {
	time.Time
}

// Now produces the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
}

// At converts t to a Timestamp, truncating to seconds.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Equal reports whether two timestamps are the same instant.
func (t Timestamp) Equal(u Timestamp) bool {
	return t.Time.Equal(u.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == `""` || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.Errorf("malformed timestamp %s", s)
	}
	parsed, err := time.Parse(time.RFC3339, s[1:len(s)-1])
	if err != nil {
		return errors.Wrap(err, "parsing timestamp")
	}
	t.Time = parsed.UTC().Truncate(time.Second)
	return nil
}
