package androidtv

import (
	"fmt"
	"strconv"
	"strings"
)

// learnSeconds is how long getevent listens for a remote key press.
const learnSeconds = 8

func cmdLearnSendevent() string {
	return fmt.Sprintf("timeout %d getevent -t 2>/dev/null; true", learnSeconds)
}

// sendeventFromGetevent converts getevent -t output such as
//
//	[   3419.591523] /dev/input/event4: 0004 0004 00070028
//
// into the equivalent "sendevent" commands joined with " && ".
// Lines that are not events are ignored.
func sendeventFromGetevent(output string) string {
	var cmds []string

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.IndexByte(line, ']'); i >= 0 && strings.HasPrefix(line, "[") {
			line = strings.TrimSpace(line[i+1:])
		}

		fields := strings.Fields(line)
		if len(fields) != 4 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		device := strings.TrimSuffix(fields[0], ":")
		if !strings.HasPrefix(device, "/dev/input/") {
			continue
		}

		typ, err1 := strconv.ParseUint(fields[1], 16, 16)
		code, err2 := strconv.ParseUint(fields[2], 16, 16)
		value, err3 := strconv.ParseUint(fields[3], 16, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		cmds = append(cmds, fmt.Sprintf("sendevent %s %d %d %d", device, typ, code, int32(uint32(value))))
	}

	return strings.Join(cmds, " && ")
}
