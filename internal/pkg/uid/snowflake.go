package uid

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrInvalidNodeID is returned when SNOWFLAKE_NODE_ID is outside 0..1023.
var ErrInvalidNodeID = errors.New("uid: snowflake node id must be between 0 and 1023")

// Snowflake generates time-ordered int64 IDs.
//
// IDs minted by one node are strictly increasing, so they break ties between
// rows that share the same creation timestamp.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake builds a generator. The node ID is read from SNOWFLAKE_NODE_ID,
// or derived from the hostname when unset.
func NewSnowflake() (*Snowflake, error) {
	nodeID, err := snowflakeNodeID()
	if err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns the next ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func snowflakeNodeID() (int64, error) {
	if v := strings.TrimSpace(os.Getenv("SNOWFLAKE_NODE_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 || id > 1023 {
			return 0, ErrInvalidNodeID
		}
		return id, nil
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		return 0, nil
	}

	h := fnv.New32a()
	h.Write([]byte(host))
	return int64(h.Sum32() % 1024), nil
}
