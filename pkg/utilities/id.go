package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string. Projects and
// tasks use these as their ids: opaque, URL-safe and time-sortable.
func NewKSUID() string {
	return ksuid.New().String()
}

// RequestIDGenerator produces snowflake ids for request tagging. If the
// snowflake node cannot be initialized it falls back to KSUIDs so an id
// is always produced.
type RequestIDGenerator struct {
	node *snowflake.Node
}

// NewRequestIDGenerator builds a generator using the node id from the
// SNOWFLAKE_NODE environment variable, defaulting to node 1.
func NewRequestIDGenerator() *RequestIDGenerator {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &RequestIDGenerator{}
	}
	return &RequestIDGenerator{node: node}
}

// Next returns the next request id.
func (g *RequestIDGenerator) Next() string {
	if g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}
