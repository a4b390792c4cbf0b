package stream

import "sync"

var (
	sharedMu sync.Mutex
	shared   *Client
)

// Shared returns the process-wide client, creating and starting it on first
// use. Later calls return the same instance and ignore cfg until Destroy.
func Shared(cfg Config) (*Client, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}

	c := NewClient(cfg)
	if err := c.Start(); err != nil {
		return nil, err
	}
	shared = c
	return c, nil
}

// Destroy closes the process-wide client. The next Shared call creates a
// new one.
func Destroy() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil
	}
	err := shared.Close()
	shared = nil
	return err
}
