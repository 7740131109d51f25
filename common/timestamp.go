package common

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05.000000000"

// Timestamp is a microsecond precision point in time, the zero value means absent.
type Timestamp struct {
	t time.Time
}

func CurrentTimestamp() Timestamp {
	return Timestamp{t: time.Now().Round(time.Microsecond)}
}

func TimestampOfDate(year int, month time.Month, day, hour, min, sec, nsec int, loc *time.Location) Timestamp {
	return Timestamp{t: time.Date(year, month, day, hour, min, sec, nsec, loc).Round(time.Microsecond)}
}

func TimestampOf(t time.Time) Timestamp {
	if t.Year() <= 1 {
		return Timestamp{}
	}
	return Timestamp{t: t.Round(time.Microsecond)}
}

func (t Timestamp) Time() time.Time {
	return t.t
}

func (t Timestamp) IsZero() bool {
	return t.t.IsZero()
}

func (t Timestamp) Before(o Timestamp) bool {
	return t.t.Before(o.t)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.t.Format(time.RFC3339Nano)
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.t.Round(time.Microsecond).Format(timestampLayout), nil
}

func (t *Timestamp) Scan(v interface{}) error {
	switch value := v.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case time.Time:
		// drivers hand back wall clock values, keep them in the local zone
		local := time.Date(value.Year(), value.Month(), value.Day(),
			value.Hour(), value.Minute(), value.Second(), value.Nanosecond(), time.Local)
		*t = TimestampOf(local)
		return nil
	case []byte:
		return t.scanString(string(value))
	case string:
		return t.scanString(value)
	default:
		return fmt.Errorf("type is neither string nor time: %T %v", v, v)
	}
}

func (t *Timestamp) scanString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", s, time.Local)
	if err != nil {
		return err
	}
	*t = TimestampOf(parsed)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.t.Format(time.RFC3339Nano) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*t = Timestamp{}
		return nil
	}
	return t.UnmarshalText([]byte(strings.Trim(s, `"`)))
}

func (t Timestamp) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.t.Format(time.RFC3339Nano)), nil
}

func (t *Timestamp) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return err
	}
	*t = TimestampOf(parsed)
	return nil
}
