package deeplink

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Capture holds an activation link found on the command line until the
// scheduler is able to deliver it.
type Capture struct {
	mu      sync.Mutex
	pending string
}

// FromArgs stashes the first argument that starts with a recognised scheme
// and reports it.
func (c *Capture) FromArgs(args []string) (string, bool) {
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if HasRecognizedPrefix(arg) {
			c.mu.Lock()
			c.pending = arg
			c.mu.Unlock()
			return arg, true
		}
	}
	return "", false
}

// Take returns and clears the stashed link.
func (c *Capture) Take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link := c.pending
	c.pending = ""
	return link, link != ""
}

// Replay schedules the link held by c, if any. A link is replayed at most once.
func (s *Scheduler) Replay(c *Capture) bool {
	link, ok := c.Take()
	if !ok {
		return false
	}
	s.logger.Info("Replaying deep link captured at launch", zap.String("param", link))
	s.Schedule(link)
	return true
}
