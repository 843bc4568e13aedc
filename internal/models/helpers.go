package models

import (
	"strconv"
	"strings"
	"time"
)

const tempIDPrefix = "temp-"

// NewTempID generates a client-local placeholder ID for an optimistic
// message. Nanosecond resolution keeps two rapid sends from one client
// distinct; the server never sees these IDs except as reconciliation keys.
func NewTempID() string {
	return tempIDPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// IsTempID reports whether id is a client-local placeholder ID rather than
// a server-assigned one.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
