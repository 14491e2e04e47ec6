package domain

import (
	"time"
)

type Command interface {
	TargetDocument() DocumentID
}

// UpdateContentCommand carries one participant's full replacement of the
// document content. Last write wins: there is no merge and no version vector.
type UpdateContentCommand struct {
	Document DocumentID
	Origin   Participant
	Content  string
	SentAt   time.Time
}

func (c UpdateContentCommand) TargetDocument() DocumentID {
	return c.Document
}
