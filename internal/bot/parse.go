package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// parseCallback splits callback data of the form "action:arg1:arg2:…" into
// the action token and its arguments.
func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

// argID parses args[i] as an int64 identifier.
func argID(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("callback argument %d missing", i)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback argument %d: %w", i, err)
	}
	return id, nil
}

// argPage parses an optional page argument, defaulting to 0.
func argPage(args []string, i int) int {
	if i >= len(args) {
		return 0
	}
	page, err := strconv.Atoi(args[i])
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// timeArg reassembles a ЧЧ:ММ value that the ":"-separated callback format
// split in two. For "time:5:weekday:08:30" the args are
// ["5", "weekday", "08", "30"] and timeArg(args, 2) returns "08:30".
func timeArg(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", fmt.Errorf("callback time argument %d missing", i)
	}
	return args[i] + ":" + args[i+1], nil
}
