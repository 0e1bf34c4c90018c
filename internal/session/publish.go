package session

import (
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/core"
	"github.com/squadfront/server/pkg/streaming"
)

// Message is an outbound view for one player.
type Message struct {
	Type string
	View view.SessionView
}

// Publisher delivers views to connected players. Publish must not block.
type Publisher interface {
	Publish(playerID string, msg Message)
}

// Archiver receives match records. Calls must not block.
type Archiver interface {
	StartMatch(rec core.MatchRecord)
	RecordRound(rec core.RoundRecord)
	EndMatch(res core.MatchResult)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Message) {}

type nopArchiver struct{}

func (nopArchiver) StartMatch(core.MatchRecord)  {}
func (nopArchiver) RecordRound(core.RoundRecord) {}
func (nopArchiver) EndMatch(core.MatchResult)    {}

// outcome is work collected under a session lock and carried out after releasing it.
type outcome struct {
	msgType    string
	deliveries []view.Delivery
	started    *core.MatchRecord
	record     *core.RoundRecord
	result     *core.MatchResult
	remove     bool
	sessionID  string
}

func (e *Engine) deliver(out outcome) {
	if out.started != nil {
		e.archive.StartMatch(*out.started)
	}
	if out.record != nil {
		e.archive.RecordRound(*out.record)
	}
	if out.result != nil {
		e.archive.EndMatch(*out.result)
	}
	msgType := out.msgType
	if msgType == "" {
		msgType = streaming.TypeSessionUpdate
	}
	for _, d := range out.deliveries {
		e.publisher.Publish(d.PlayerID, Message{Type: msgType, View: d.View})
	}
	if out.remove {
		e.drop(out.sessionID)
	}
}
