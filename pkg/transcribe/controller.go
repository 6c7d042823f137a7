package transcribe

import (
	"context"
	"fmt"
	"log"
	"sync"

	"video-to-text/pkg/models"
)

// State is what a view renders for the transcription request lifecycle.
type State struct {
	Loading bool                        `json:"loading"`
	Result  *models.TranscriptionResult `json:"result"`
	Error   *models.TranscriptionError  `json:"error"`
	// Seq is the number of the latest issued request, 0 while idle.
	Seq uint64 `json:"seq"`
}

// Controller runs transcription requests and keeps the state of the most
// recent one. Completions of superseded requests are dropped.
type Controller struct {
	client Transcriber

	mu     sync.Mutex
	state  State
	issued uint64
	subs   map[chan State]struct{}
}

func NewController(client Transcriber) *Controller {
	return &Controller{
		client: client,
		subs:   make(map[chan State]struct{}),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcribe issues a request and blocks until it completes. The returned
// state may belong to a newer request if one was issued meanwhile.
func (c *Controller) Transcribe(ctx context.Context, url string) State {
	seq := c.begin()
	result, err := c.call(ctx, url)
	c.finish(seq, result, err)
	return c.State()
}

// Start issues a request in the background and returns its sequence number.
func (c *Controller) Start(ctx context.Context, url string) uint64 {
	seq := c.begin()
	go func() {
		result, err := c.call(ctx, url)
		c.finish(seq, result, err)
	}()
	return seq
}

// Subscribe returns a channel receiving a snapshot after every state
// change. Slow subscribers miss snapshots rather than block the controller.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.issued++
	c.state.Loading = true
	c.state.Error = nil
	c.state.Seq = c.issued
	c.notify()
	return c.issued
}

func (c *Controller) finish(seq uint64, result *models.TranscriptionResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.issued {
		log.Printf("Transcription Controller: dropping stale completion %d (latest %d)", seq, c.issued)
		return
	}

	c.state.Loading = false
	if err != nil {
		c.state.Error = Classify(err)
		log.Printf("Transcription Controller: request %d failed (%s): %v", seq, c.state.Error.Kind, c.state.Error)
	} else {
		if result == nil {
			result = &models.TranscriptionResult{}
		}
		c.state.Result = result
		c.state.Error = nil
		log.Printf("Transcription Controller: request %d succeeded", seq)
	}
	c.notify()
}

// call shields the controller from panicking transcribers.
func (c *Controller) call(ctx context.Context, url string) (result *models.TranscriptionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			if e, ok := r.(error); ok {
				err = fmt.Errorf("transcriber panicked: %w", e)
				return
			}
			err = models.NewUnknownError()
		}
	}()
	return c.client.Transcribe(ctx, url)
}

// notify must be called with c.mu held.
func (c *Controller) notify() {
	for ch := range c.subs {
		select {
		case ch <- c.state:
		default:
		}
	}
}
