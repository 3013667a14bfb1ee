package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id UserID) Valid() bool { return id > 0 }

// UnmarshalJSON принимает и 42, и "42": веб-клиенты шлют id то числом, то строкой.
func (id *UserID) UnmarshalJSON(b []byte) error {
	v, err := parseID(b)
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(v)
	return nil
}

func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidInput
	}
	return UserID(v), nil
}

type User struct {
	ID         UserID
	Username   string
	Bio        *string
	ProfilePic *string
}

func parseID(b []byte) (int64, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}
