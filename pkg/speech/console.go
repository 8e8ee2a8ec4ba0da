package speech

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// ConsoleListener treats each typed line as an utterance. Blank lines are
// unintelligible.
type ConsoleListener struct {
	once  sync.Once
	r     io.Reader
	lines chan string
}

// NewConsoleListener reads from r, usually os.Stdin.
func NewConsoleListener(r io.Reader) *ConsoleListener {
	return &ConsoleListener{r: r, lines: make(chan string)}
}

func (c *ConsoleListener) scan() {
	defer close(c.lines)
	sc := bufio.NewScanner(c.r)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

// Listen waits for the next line.
func (c *ConsoleListener) Listen(ctx context.Context) (string, error) {
	c.once.Do(func() { go c.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", ErrNoInput
		}
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			return "", ErrUnintelligible
		}
		return line, nil
	}
}
