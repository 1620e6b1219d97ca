package net

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	maxFrameSize  = 8 << 20
	sendQueueSize = 256
)

// Peer is one websocket connection to the host. Frames are written by a
// single writer goroutine draining the send queue.
type Peer struct {
	ID string

	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	// guarded by Hub.mu
	room string

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(id string, conn *websocket.Conn, logger *zap.Logger) *Peer {
	return &Peer{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		logger: logger.With(zap.String("peer", id)),
		done:   make(chan struct{}),
	}
}

// enqueue hands a frame to the writer. A peer that cannot keep up is
// disconnected; it gets the full history again when it rejoins.
func (p *Peer) enqueue(frame []byte) {
	select {
	case <-p.done:
	case p.send <- frame:
	default:
		p.logger.Warn("send queue full, disconnecting")
		p.close()
	}
}

// close asks the writer to send a close frame and drop the connection.
func (p *Peer) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
		p.conn.Close()
	}()
	for {
		select {
		case frame := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump hands every frame to handle until the connection fails.
func (p *Peer) readPump(handle func(frame []byte)) {
	p.conn.SetReadLimit(maxFrameSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		mt, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				p.logger.Info("read failed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		handle(frame)
	}
}
