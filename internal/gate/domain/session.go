package domain

import "time"

// RawSession is a row of the host application's session table.
type RawSession struct {
	SID       string
	UID       int64  // 0 when the table does not track the user directly
	Payload   []byte // Serialized session data
	Timestamp time.Time
}
