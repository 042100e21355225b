// Package console is a line-based gateway over stdin/stdout for local use.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"kasbot/internal/gateway"
)

const (
	Name     = "console"
	senderID = "console"

	// MaxLineBytes bounds one input line; longer lines are skipped.
	MaxLineBytes = 64 << 10
)

type Gateway struct {
	in  io.Reader
	out io.Writer

	mu    sync.Mutex
	seq   int
	lines chan string
	errc  chan error
	once  sync.Once
}

func New(in io.Reader, out io.Writer) *Gateway {
	return &Gateway{
		in:    in,
		out:   out,
		lines: make(chan string),
		errc:  make(chan error, 1),
	}
}

func (g *Gateway) Name() string { return Name }

// Listen reads one message per line. The reader is shared across restarts,
// so a single scanning goroutine feeds every Listen call.
func (g *Gateway) Listen(ctx context.Context, h gateway.Handler) error {
	g.once.Do(func() { go g.scan() })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-g.errc:
			g.errc <- err
			return err
		case line := <-g.lines:
			h(ctx, g.message(line))
		}
	}
}

// scan feeds lines to Listen until the input ends. Any read failure closes
// the gateway, since the shared reader cannot be resumed.
func (g *Gateway) scan() {
	r := bufio.NewReader(g.in)
	for {
		line, tooLong, err := readLine(r, MaxLineBytes)
		if err != nil && !errors.Is(err, io.EOF) {
			g.errc <- fmt.Errorf("read input: %w: %w", gateway.ErrClosed, err)
			return
		}
		if !tooLong && (err == nil || line != "") {
			g.lines <- line
		}
		if err != nil {
			g.errc <- gateway.ErrClosed
			return
		}
	}
}

// readLine returns the next line without its terminator. Lines longer than
// max are consumed in full and reported with tooLong set.
func readLine(r *bufio.Reader, max int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > max+2 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		line = strings.TrimRight(string(buf), "\r\n")
		if !tooLong && len(line) > max {
			tooLong, line = true, ""
		}
		return line, tooLong, rerr
	}
}

func (g *Gateway) message(line string) gateway.Message {
	g.mu.Lock()
	g.seq++
	id := strconv.Itoa(g.seq)
	g.mu.Unlock()

	return gateway.Message{
		ID:         id,
		SenderID:   senderID,
		ChatID:     senderID,
		Text:       line,
		ReceivedAt: time.Now(),
	}
}

func (g *Gateway) Reply(_ context.Context, _ gateway.Message, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := fmt.Fprintf(g.out, "%s\n\n", text)
	return err
}
