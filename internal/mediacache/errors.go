package mediacache

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

var ErrInvalidKey = errors.New("mediacache: key requires a fingerprint and a known role")

var ErrEmptyRemoteID = errors.New("mediacache: entry requires a remote id")

func checkEntry(entry interfaces.MediaEntry) error {
	if !validKey(entry.Key) {
		return fmt.Errorf("%w: %s", ErrInvalidKey, entry.Key)
	}
	if entry.RemoteID == "" {
		return ErrEmptyRemoteID
	}
	return nil
}
