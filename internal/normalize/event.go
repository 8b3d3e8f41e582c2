// internal/normalize/event.go
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github-org-mirror/internal/model"
)

// Normalized is the uniform shape of a timeline event.
type Normalized struct {
	Summary string
	Details map[string]any
}

// Normalize maps a raw timeline event to a one-line summary and the details relevant
// to its kind. Unknown kinds produce the kind itself as summary and empty details.
func Normalize(ev model.TimelineEvent) Normalized {
	d := details{}
	who := actorLogin(ev)

	switch ev.Event {
	case "committed":
		sha := firstNonEmpty(ev.SHA, ev.CommitID)
		d.set("sha", sha)
		d.set("message", ev.Message)
		if ev.Author != nil {
			d.set("authorName", ev.Author.Name)
			d.set("authorEmail", ev.Author.Email)
			d.setTime("authoredAt", ev.Author.Date)
		}
		return d.done(fmt.Sprintf("committed %s: %s", shortSHA(sha), firstLine(ev.Message)))

	case "labeled", "unlabeled":
		verb := "added"
		if ev.Event == "unlabeled" {
			verb = "removed"
		}
		name := ""
		if ev.Label != nil {
			name = ev.Label.Name
			d.set("label", ev.Label.Name)
			d.set("color", ev.Label.Color)
		}
		return d.done(fmt.Sprintf("%s %s label %q", who, verb, name))

	case "assigned", "unassigned":
		assignee := loginOf(ev.Assignee)
		d.set("assignee", assignee)
		if ev.Event == "assigned" {
			return d.done(fmt.Sprintf("%s assigned %s", who, assignee))
		}
		return d.done(fmt.Sprintf("%s unassigned %s", who, assignee))

	case "milestoned":
		d.set("milestone", ev.Milestone)
		return d.done(fmt.Sprintf("%s added this to the %q milestone", who, ev.Milestone))

	case "demilestoned":
		d.set("milestone", ev.Milestone)
		return d.done(fmt.Sprintf("%s removed this from the %q milestone", who, ev.Milestone))

	case "renamed":
		from, to := "", ""
		if ev.Rename != nil {
			from, to = ev.Rename.From, ev.Rename.To
		}
		d.set("from", from)
		d.set("to", to)
		return d.done(fmt.Sprintf("%s changed the title from %q to %q", who, from, to))

	case "cross-referenced":
		if ev.Source == nil {
			return d.done(fmt.Sprintf("%s cross-referenced this", who))
		}
		src := ev.Source
		d.set("sourceType", src.Type)
		d.set("repository", src.Repository)
		d.setInt("number", src.IssueNumber)
		d.set("title", src.IssueTitle)
		d.set("url", src.IssueURL)
		d["isPullRequest"] = src.IsPull
		kind := "issue"
		if src.IsPull {
			kind = "pull request"
		}
		return d.done(fmt.Sprintf("%s mentioned this in %s %s#%d", who, kind, src.Repository, src.IssueNumber))

	case "referenced":
		d.set("commitId", ev.CommitID)
		return d.done(fmt.Sprintf("%s referenced this in commit %s", who, shortSHA(ev.CommitID)))

	case "reviewed":
		d.set("state", ev.State)
		d.set("body", ev.Body)
		d.set("url", ev.URL)
		d.setTime("submittedAt", ev.SubmittedAt)
		return d.done(fmt.Sprintf("%s reviewed: %s", who, strings.ToLower(firstNonEmpty(ev.State, "commented"))))

	case "commented":
		d.set("body", ev.Body)
		d.set("url", ev.URL)
		return d.done(fmt.Sprintf("%s commented", who))

	case "closed", "reopened", "merged":
		d.set("commitId", ev.CommitID)
		if ev.Event == "merged" && ev.CommitID != "" {
			return d.done(fmt.Sprintf("%s merged commit %s", who, shortSHA(ev.CommitID)))
		}
		return d.done(fmt.Sprintf("%s %s this", who, ev.Event))

	case "head_ref_deleted":
		return d.done(fmt.Sprintf("%s deleted the head branch", who))

	case "head_ref_restored":
		return d.done(fmt.Sprintf("%s restored the head branch", who))

	case "head_ref_force_pushed":
		d.set("commitId", ev.CommitID)
		return d.done(fmt.Sprintf("%s force-pushed the head branch", who))

	case "review_requested", "review_request_removed":
		target := loginOf(ev.Reviewer)
		if target == "" && ev.ReviewTeam != "" {
			target = "team " + ev.ReviewTeam
			d.set("team", ev.ReviewTeam)
		}
		d.set("reviewer", loginOf(ev.Reviewer))
		d.set("requester", loginOf(ev.Requester))
		requester := firstNonEmpty(loginOf(ev.Requester), who)
		if ev.Event == "review_requested" {
			return d.done(fmt.Sprintf("%s requested a review from %s", requester, target))
		}
		return d.done(fmt.Sprintf("%s removed the review request for %s", requester, target))

	case "locked", "unlocked":
		return d.done(fmt.Sprintf("%s %s the conversation", who, ev.Event))

	case "mentioned", "subscribed", "unsubscribed":
		return d.done(fmt.Sprintf("%s was %s", who, ev.Event))

	case "connected", "disconnected":
		if ev.Source != nil {
			d.set("repository", ev.Source.Repository)
			d.setInt("number", ev.Source.IssueNumber)
		}
		return d.done(fmt.Sprintf("%s %s a linked issue or pull request", who, ev.Event))

	case "marked_as_duplicate", "unmarked_as_duplicate":
		verb := "marked this as a duplicate"
		if ev.Event == "unmarked_as_duplicate" {
			verb = "unmarked this as a duplicate"
		}
		return d.done(fmt.Sprintf("%s %s", who, verb))

	case "transferred":
		return d.done(fmt.Sprintf("%s transferred this issue", who))

	case "pinned", "unpinned":
		return d.done(fmt.Sprintf("%s %s this issue", who, ev.Event))

	case "convert_to_draft":
		return d.done(fmt.Sprintf("%s marked this pull request as draft", who))

	case "ready_for_review":
		return d.done(fmt.Sprintf("%s marked this pull request as ready for review", who))

	default:
		return Normalized{Summary: ev.Event, Details: map[string]any{}}
	}
}

type details map[string]any

func (d details) set(k, v string) {
	if v != "" {
		d[k] = v
	}
}

func (d details) setInt(k string, v int) {
	if v != 0 {
		d[k] = v
	}
}

func (d details) setTime(k string, t *time.Time) {
	if t != nil {
		d[k] = t.UTC().Format(time.RFC3339)
	}
}

func (d details) done(summary string) Normalized {
	return Normalized{Summary: summary, Details: map[string]any(d)}
}

func actorLogin(ev model.TimelineEvent) string {
	if l := loginOf(ev.Actor); l != "" {
		return l
	}
	if l := loginOf(ev.User); l != "" {
		return l
	}
	if ev.Author != nil && ev.Author.Name != "" {
		return ev.Author.Name
	}
	return "someone"
}

func loginOf(a *model.Actor) string {
	if a == nil {
		return ""
	}
	return a.Login
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
