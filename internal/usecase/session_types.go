package usecase

import (
	"context"

	"voicechat/internal/ports"
)

// activeSession is one connect..disconnect cycle. conn and listening are
// guarded by SessionController.mu.
type activeSession struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	eventsDone chan struct{}

	conn      ports.Connection
	listening bool
}

func (s *activeSession) connected() bool {
	return s.conn != nil
}
