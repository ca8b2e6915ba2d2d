package service

import "surveychat/internal/model"

// Broadcaster pushes survey events to subscribed author sockets (avoids import cycle)
type Broadcaster interface {
	Publish(event model.SurveyEvent)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(model.SurveyEvent) {}

func orNop(b Broadcaster) Broadcaster {
	if b == nil {
		return nopBroadcaster{}
	}
	return b
}
