package core

import "time"

// CommandRecord describes one handled chat command. It feeds the audit log and
// the mutation event stream.
type CommandRecord struct {
	ReceivedAt time.Time
	Gateway    string
	MessageID  string
	SenderID   string
	ChatID     string
	Command    string
	Amount     int64
	Note       string
	Outcome    string
	Balance    int64 // new balance after an accepted write
	Error      string
}
