package memcore

import (
	"encoding/json"
	"fmt"

	"github.com/wippyai/tox-bridge/errors"
)

const savedataVersion = 1

type savedata struct {
	SecretKey     []byte    `json:"secret_key"`
	Name          []byte    `json:"name,omitempty"`
	StatusMessage []byte    `json:"status_message,omitempty"`
	Friends       []*friend `json:"friends,omitempty"`
	Version       int       `json:"version"`
}

func (c *Core) save() ([]byte, error) {
	sd := savedata{
		Version:       savedataVersion,
		SecretKey:     c.secretKey[:],
		Name:          c.name,
		StatusMessage: c.statusMessage,
	}
	for n := uint32(0); n < c.nextFriend; n++ {
		if f, ok := c.friends[n]; ok {
			sd.Friends = append(sd.Friends, f)
		}
	}
	b, err := json.Marshal(sd)
	if err != nil {
		return nil, errors.Native(errors.PhaseSnapshot, "encode savedata", err)
	}
	return b, nil
}

func (c *Core) load(b []byte) error {
	var sd savedata
	if err := json.Unmarshal(b, &sd); err != nil {
		return err
	}
	if sd.Version != savedataVersion {
		return fmt.Errorf("savedata version %d", sd.Version)
	}
	if len(sd.SecretKey) != len(c.secretKey) {
		return fmt.Errorf("secret key is %d bytes", len(sd.SecretKey))
	}
	copy(c.secretKey[:], sd.SecretKey)
	c.name = sd.Name
	c.statusMessage = sd.StatusMessage
	for _, f := range sd.Friends {
		if f == nil || len(f.PublicKey) != len(c.secretKey) {
			return fmt.Errorf("malformed friend entry")
		}
		c.friends[f.Number] = f
		if f.Number >= c.nextFriend {
			c.nextFriend = f.Number + 1
		}
	}
	return nil
}
