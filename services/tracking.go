package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const trackingPrefix = "TRK"

// NewTrackingID returns an identifier of the form TRK-YYYYMMDD-XXXXXX using
// the current UTC date and three random bytes in uppercase hex. Uniqueness is
// not enforced.
func NewTrackingID() string {
	id, err := trackingIDAt(time.Now(), rand.Reader)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("tracking id: %v", err))
	}
	return id
}

func trackingIDAt(now time.Time, random io.Reader) (string, error) {
	buf := make([]byte, 3)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s",
		trackingPrefix,
		now.UTC().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(buf)),
	), nil
}
