package stores

import (
	"encoding/json"

	auth "github.com/liut/simpauth"
)

type User = auth.User

// Identity is what a login leaves behind: the bearer token and its owner.
type Identity struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z *Identity) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Identity) UnmarshalBinary(data []byte) error {
	var t Identity
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
