package mcpserver

import (
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// roomIDArg reads a positive room_id; JSON numbers arrive as float64.
func roomIDArg(request mcp.CallToolRequest) (uint64, error) {
	v, err := request.RequireFloat("room_id")
	if err != nil {
		return 0, err
	}
	if v < 1 || v != float64(uint64(v)) {
		return 0, fmt.Errorf("room_id must be a positive integer")
	}
	return uint64(v), nil
}

// wholeArg reads a required whole number. Fractions are rejected rather than
// truncated so a payment of 100.9 never counts as 100.
func wholeArg(request mcp.CallToolRequest, name string) (int64, error) {
	v, err := request.RequireFloat(name)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
	return int64(v), nil
}
