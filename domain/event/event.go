package event

import (
	"time"

	"doc-sync/domain"
)

type DomainEvent interface {
	DocumentID() domain.DocumentID
}

// ContentUpdated is emitted after a participant's update has replaced the
// session's cached content. Origin is carried so the fanout can skip the
// sender: a participant never receives its own edit back.
type ContentUpdated struct {
	Document domain.DocumentID
	Origin   domain.Participant
	Content  string
	At       time.Time
}

func (e ContentUpdated) DocumentID() domain.DocumentID {
	return e.Document
}

type ParticipantJoined struct {
	Document    domain.DocumentID
	Participant domain.Participant
	At          time.Time
}

func (e ParticipantJoined) DocumentID() domain.DocumentID {
	return e.Document
}

type ParticipantLeft struct {
	Document    domain.DocumentID
	Participant domain.Participant
	At          time.Time
}

func (e ParticipantLeft) DocumentID() domain.DocumentID {
	return e.Document
}
