package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/V4T54L/display-watch/internal/domain"
)

// clientBuffer is the per-subscriber queue size. Slow consumers that fall
// further behind than this miss updates rather than stalling the publisher.
const clientBuffer = 16

// JobEventBroker fans job lifecycle updates out to SSE subscribers on
// GET /api/jobs/events. It implements domain.JobEventPublisher so the
// usecases can stay unaware of the transport.
type JobEventBroker struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewJobEventBroker(logger *slog.Logger) *JobEventBroker {
	return &JobEventBroker{
		logger:  logger.With("component", "job_events"),
		clients: make(map[chan []byte]struct{}),
	}
}

// PublishJobUpdate broadcasts a job snapshot to every connected subscriber.
// It never blocks: subscribers that cannot keep up drop updates.
func (b *JobEventBroker) PublishJobUpdate(job *domain.Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		b.logger.Error("failed to marshal job event", "job_id", job.ID, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- payload:
		default:
			// Client is not reading fast enough. Drop the update.
		}
	}
}

func (b *JobEventBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("sse client connected", "total_clients", len(b.clients))
}

func (b *JobEventBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client)
	b.logger.Info("sse client disconnected", "total_clients", len(b.clients))
}

// ServeHTTP streams job updates as SSE events until the client disconnects.
func (b *JobEventBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	messageChan := make(chan []byte, clientBuffer)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	// Push the headers out immediately so subscribers see the stream
	// open before the first event arrives.
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-messageChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
