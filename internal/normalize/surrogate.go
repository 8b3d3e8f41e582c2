// internal/normalize/surrogate.go
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github-org-mirror/internal/model"
)

var surrogateNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/issue-timeline"))

// SurrogateIDs assigns event identifiers for one issue's timeline. Events carrying a
// provider id keep it. The others get a name-based UUID derived from the event's content,
// so the same timeline yields the same ids on every run. Identical events are told apart
// by their occurrence order.
type SurrogateIDs struct {
	issueKey string
	seen     map[string]int
}

// NewSurrogateIDs creates a generator scoped to the issue identified by issueKey.
func NewSurrogateIDs(issueKey string) *SurrogateIDs {
	return &SurrogateIDs{issueKey: issueKey, seen: make(map[string]int)}
}

// EventID returns the identifier to store ev under and whether it was generated.
func (g *SurrogateIDs) EventID(ev model.TimelineEvent) (string, bool) {
	if ev.ID != nil {
		return strconv.FormatInt(*ev.ID, 10), false
	}

	created := ""
	if ev.CreatedAt != nil {
		created = ev.CreatedAt.UTC().Format(time.RFC3339Nano)
	} else if ev.Author != nil && ev.Author.Date != nil {
		created = ev.Author.Date.UTC().Format(time.RFC3339Nano)
	}
	seed := strings.Join([]string{g.issueKey, ev.Event, ev.SHA, ev.CommitID, created, actorLogin(ev)}, "|")

	n := g.seen[seed]
	g.seen[seed] = n + 1

	return uuid.NewSHA1(surrogateNamespace, []byte(seed+"|"+strconv.Itoa(n))).String(), true
}
