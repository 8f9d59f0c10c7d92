package gameimport

import (
	"regexp"
	"strings"
)

// Source identifies the platform a game lives on.
type Source string

const (
	SourceLichess  Source = "lichess"
	SourceChessCom Source = "chesscom"
)

// Chess.com game kinds, used in the callback endpoint path.
const (
	KindLive  = "live"
	KindDaily = "daily"
)

// Ref is a classified game URL.
type Ref struct {
	Source Source `json:"source"`
	GameID string `json:"gameId"`
	Kind   string `json:"kind,omitempty"` // Chess.com only
}

var (
	lichessRe       = regexp.MustCompile(`(?i:lichess\.org)/(?:game/)?([a-zA-Z0-9]{8,12})(?:/(?:white|black))?(?:[/?#]|$)`)
	chessComLiveRe  = regexp.MustCompile(`(?i:chess\.com)/(?:game/)?live/(\d+)`)
	chessComDailyRe = regexp.MustCompile(`(?i:chess\.com)/game/daily/(\d+)`)
)

// lichessPages are top-level lichess.org paths that look like game ids but
// are site sections.
var lichessPages = map[string]bool{
	"analysis": true, "broadcast": true, "broadcasts": true, "calendar": true,
	"coordinate": true, "developers": true, "features": true, "insights": true,
	"leaderboard": true, "practice": true, "preferences": true, "streamer": true,
	"streamers": true, "tournament": true, "tournaments": true, "training": true,
	"variants": true,
}

// Classify maps a URL to its platform and game id. Rules are tried in order:
// Lichess, Chess.com live, Chess.com daily. ok is false for anything else.
func Classify(rawURL string) (ref Ref, ok bool) {
	u := strings.TrimSpace(rawURL)
	if m := lichessRe.FindStringSubmatch(u); m != nil && !lichessPages[strings.ToLower(m[1])] {
		return Ref{Source: SourceLichess, GameID: m[1]}, true
	}
	if m := chessComLiveRe.FindStringSubmatch(u); m != nil {
		return Ref{Source: SourceChessCom, GameID: m[1], Kind: KindLive}, true
	}
	if m := chessComDailyRe.FindStringSubmatch(u); m != nil {
		return Ref{Source: SourceChessCom, GameID: m[1], Kind: KindDaily}, true
	}
	return Ref{}, false
}

// IsGameURL reports whether s should be treated as an import trigger rather
// than, say, a note title.
func IsGameURL(s string) bool {
	_, ok := Classify(s)
	return ok
}
