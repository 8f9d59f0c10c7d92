package uciengine

import (
	"strconv"
	"strings"
)

// MateScore is the synthetic centipawn score reported for forced mates.
const MateScore = 10000

// Info is one parsed "info depth ..." line.
type Info struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Score    int
	Mate     *int
	HasScore bool
	Bound    string // "lowerbound", "upperbound" or empty
	Nodes    int64
	NPS      int64
	TimeMS   int64
	PV       []string
}

// ParseInfo parses an engine "info depth ..." line. Lines that do not start
// with "info depth" (currmove reports, "info string", ...) return ok=false.
func ParseInfo(line string) (info Info, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "info depth") {
		return Info{}, false
	}
	f := strings.Fields(line)
	info.MultiPV = 1
	for i := 1; i < len(f); i++ {
		next := func() string {
			if i+1 < len(f) {
				i++
				return f[i]
			}
			return ""
		}
		switch f[i] {
		case "depth":
			info.Depth = atoi(next())
		case "seldepth":
			info.SelDepth = atoi(next())
		case "multipv":
			if n := atoi(next()); n > 0 {
				info.MultiPV = n
			}
		case "nodes":
			info.Nodes = atoi64(next())
		case "nps":
			info.NPS = atoi64(next())
		case "time":
			info.TimeMS = atoi64(next())
		case "score":
			kind := next()
			v, err := strconv.Atoi(next())
			if err != nil {
				continue
			}
			switch kind {
			case "cp":
				info.Score = v
				info.HasScore = true
			case "mate":
				m := v
				info.Mate = &m
				info.Score = mateToScore(v)
				info.HasScore = true
			}
		case "lowerbound", "upperbound":
			info.Bound = f[i]
		case "pv":
			info.PV = append([]string(nil), f[i+1:]...)
			return info, true
		case "string":
			return info, true
		}
	}
	return info, true
}

// ParseBestMove extracts the move from a "bestmove <move> [ponder <move>]" line.
func ParseBestMove(line string) (move string, ok bool) {
	f := strings.Fields(line)
	if len(f) == 0 || f[0] != "bestmove" {
		return "", false
	}
	if len(f) < 2 || f[1] == "(none)" {
		return "", true
	}
	return f[1], true
}

// mateToScore maps "mate n" to ±MateScore; mate 0 means the side to move is mated.
func mateToScore(n int) int {
	if n > 0 {
		return MateScore
	}
	return -MateScore
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
