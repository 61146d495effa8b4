// Package ids issues donation record identifiers.
package ids

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator returns a new unique id on every call. Implementations must be
// safe for concurrent use.
type Generator interface {
	NextID() string
}

// Snowflake issues time-ordered 63-bit ids rendered in base 10.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake builds a generator for the given node number (0-1023). Each
// running instance sharing a backend needs its own node number.
func NewSnowflake(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &Snowflake{node: n}, nil
}

func (s *Snowflake) NextID() string {
	return s.node.Generate().String()
}

// Func adapts a plain function to Generator.
type Func func() string

func (f Func) NextID() string { return f() }
