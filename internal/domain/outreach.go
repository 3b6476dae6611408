package domain

import "time"

// OutreachChannel says how a message left (or is waiting to leave) the system.
type OutreachChannel string

const (
	ChannelEmail       OutreachChannel = "email"
	ChannelManualQueue OutreachChannel = "manual"
)

// OutreachMessage is one personalized contact attempt plus its follow-up
// history. FollowUpStage only moves up; once a response is detected no more
// follow-ups are scheduled.
type OutreachMessage struct {
	ID               string
	JobFingerprint   string
	Company          string
	Contact          string
	ContactEmail     string
	Channel          OutreachChannel
	Subject          string
	Content          string
	SentAt           *time.Time
	QueuedAt         *time.Time
	FollowUpStage    int
	LastFollowUpAt   *time.Time
	ResponseDetected bool
	DoNotFollowUp    bool
}

// Classification labels for inbox replies.
type ReplyClass string

const (
	ReplyPositive  ReplyClass = "POSITIVE"
	ReplyRejection ReplyClass = "REJECTION"
	ReplyQuestion  ReplyClass = "QUESTION"
	ReplySpam      ReplyClass = "SPAM"
)

// ClassifiedMessage is a mailbox reply after classification.
type ClassifiedMessage struct {
	ID           string
	MessageUID   uint32
	Folder       string
	From         string
	Subject      string
	Class        ReplyClass
	Confidence   float64
	MatchedAppID string
	ClassifiedAt time.Time
}
