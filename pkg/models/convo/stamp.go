package convo

import (
	"bytes"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
)

// Stamp is a timestamp that accepts the loose ISO forms the chat service
// emits, with or without zone and fraction.
type Stamp struct {
	time.Time
}

func Now() Stamp {
	return Stamp{time.Now()}
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(s.Format(time.RFC3339Nano))), nil
}

func (s *Stamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*s = Stamp{}
		return nil
	}
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	t, err := dateparse.ParseAny(str)
	if err != nil {
		return err
	}
	s.Time = t
	return nil
}
