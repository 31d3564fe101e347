package handlers

import (
	"errors"
	"strconv"
	"strings"

	"product-studio-ai/internal/studio"
)

var (
	errMissingNode        = errors.New("missing node")
	errBadNode            = errors.New("unknown node")
	errMissingInstruction = errors.New("missing instruction")
	errBadIndex           = errors.New("bad history index")
)

// areaKeyword marks an edit as scoped to the region the user pointed out.
const areaKeyword = "zona"

type editArgs struct {
	NodeID       string
	Instruction  string
	AreaSelected bool
}

func parseNodeArg(args string) (string, []string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", nil, errMissingNode
	}
	nodeID, ok := studio.ResolveNodeID(fields[0])
	if !ok {
		return "", nil, errBadNode
	}
	return nodeID, fields[1:], nil
}

// parseEditArgs reads "<node> [zona] <instruction...>".
func parseEditArgs(args string) (editArgs, error) {
	nodeID, rest, err := parseNodeArg(args)
	if err != nil {
		return editArgs{}, err
	}

	out := editArgs{NodeID: nodeID}
	if len(rest) > 0 && strings.EqualFold(rest[0], areaKeyword) {
		out.AreaSelected = true
		rest = rest[1:]
	}

	out.Instruction = strings.Join(rest, " ")
	if out.Instruction == "" {
		return editArgs{}, errMissingInstruction
	}
	return out, nil
}

// parseRevertArgs reads "<node> <n>" where n counts from 1 as shown by /historial.
func parseRevertArgs(args string) (string, int, error) {
	nodeID, rest, err := parseNodeArg(args)
	if err != nil {
		return "", 0, err
	}
	if len(rest) != 1 {
		return "", 0, errBadIndex
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n < 1 {
		return "", 0, errBadIndex
	}
	return nodeID, n - 1, nil
}
