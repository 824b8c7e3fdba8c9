package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"portfolio-lab/internal/domain"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream pushes a job snapshot whenever its progress, message or
// status changes, then closes normally once the job is terminal. Unknown
// jobs get a plain 404 before the upgrade.
func (s *Server) handleStream(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("job_id", job.ID).Logger()

	// Reader drains control frames and notices a client close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(s.poll)
	defer poll.Stop()
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	var last *domain.Job
	for {
		if changed(last, job) {
			if err := writeSnapshot(conn, job); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
			last = job
		}
		if job.Status.Terminal() {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}

		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			next, err := s.jobs.Job(c.Request.Context(), job.ID)
			if err != nil {
				log.Warn().Err(err).Msg("job disappeared while streaming")
				return
			}
			job = next
		}
	}
}

func changed(prev, cur *domain.Job) bool {
	if prev == nil {
		return true
	}
	return prev.Status != cur.Status || prev.Progress != cur.Progress || prev.Message != cur.Message
}

func writeSnapshot(conn *websocket.Conn, job *domain.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
