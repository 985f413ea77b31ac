package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init configures the Snowflake node. Subsequent calls are ignored so that tests and
// binaries can both call it safely.
func Init(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	node = n
	return nil
}

// New returns a time-ordered int64 id, used for inspection reports and knowledge items.
// Panics if Init has not been called.
func New() int64 {
	mu.Lock()
	n := node
	mu.Unlock()
	if n == nil {
		panic("id: Init must be called before New")
	}
	return n.Generate().Int64()
}
