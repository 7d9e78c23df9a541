package bridge

import "dcbridge/internal/engine"

// StatusSnapshot is a point-in-time view of engine state, served over the
// REST surface and broadcast periodically on the status channel.
type StatusSnapshot struct {
	Hubs      []engine.HubInfo     `json:"hubs"`
	QueueSize int                  `json:"queue_size"`
	Transfers engine.TransferStats `json:"transfers"`
	Share     engine.ShareStats    `json:"share"`
	Hashing   engine.HashStatus    `json:"hashing"`
}

// Status queries the engine for a fresh snapshot.
func (b *Bridge) Status() StatusSnapshot {
	return StatusSnapshot{
		Hubs:      b.engine.ListHubs(),
		QueueSize: len(b.engine.ListQueue()),
		Transfers: b.engine.TransferStats(),
		Share:     b.engine.ShareStats(),
		Hashing:   b.engine.HashStatus(),
	}
}
