// internal/normalize/event_test.go
package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-org-mirror/internal/model"
)

func actor(login string) *model.Actor {
	return &model.Actor{Login: login}
}

func TestNormalize(t *testing.T) {
	authored := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		event       model.TimelineEvent
		wantSummary string
		wantDetails map[string]any
	}{
		{
			name: "committed",
			event: model.TimelineEvent{
				Event:   "committed",
				SHA:     "0123456789abcdef",
				Message: "fix parser\n\nlong body",
				Author:  &model.CommitIdentity{Name: "Ada", Email: "ada@example.com", Date: &authored},
			},
			wantSummary: "committed 0123456: fix parser",
			wantDetails: map[string]any{
				"sha":         "0123456789abcdef",
				"message":     "fix parser\n\nlong body",
				"authorName":  "Ada",
				"authorEmail": "ada@example.com",
				"authoredAt":  "2024-03-01T10:00:00Z",
			},
		},
		{
			name:        "labeled",
			event:       model.TimelineEvent{Event: "labeled", Actor: actor("bob"), Label: &model.TimelineLabel{Name: "bug", Color: "d73a4a"}},
			wantSummary: `bob added label "bug"`,
			wantDetails: map[string]any{"label": "bug", "color": "d73a4a"},
		},
		{
			name:        "unlabeled",
			event:       model.TimelineEvent{Event: "unlabeled", Actor: actor("bob"), Label: &model.TimelineLabel{Name: "bug"}},
			wantSummary: `bob removed label "bug"`,
			wantDetails: map[string]any{"label": "bug"},
		},
		{
			name:        "assigned",
			event:       model.TimelineEvent{Event: "assigned", Actor: actor("bob"), Assignee: actor("carol")},
			wantSummary: "bob assigned carol",
			wantDetails: map[string]any{"assignee": "carol"},
		},
		{
			name:        "renamed",
			event:       model.TimelineEvent{Event: "renamed", Actor: actor("bob"), Rename: &model.TimelineRename{From: "old", To: "new"}},
			wantSummary: `bob changed the title from "old" to "new"`,
			wantDetails: map[string]any{"from": "old", "to": "new"},
		},
		{
			name: "cross-referenced from a pull request",
			event: model.TimelineEvent{
				Event: "cross-referenced",
				Actor: actor("dan"),
				Source: &model.TimelineSource{
					Type: "issue", IssueNumber: 12, IssueTitle: "Fix it", Repository: "acme/web", IsPull: true,
				},
			},
			wantSummary: "dan mentioned this in pull request acme/web#12",
			wantDetails: map[string]any{
				"sourceType":    "issue",
				"repository":    "acme/web",
				"number":        12,
				"title":         "Fix it",
				"isPullRequest": true,
			},
		},
		{
			name:        "reviewed uses the user when no actor is present",
			event:       model.TimelineEvent{Event: "reviewed", User: actor("erin"), State: "APPROVED"},
			wantSummary: "erin reviewed: approved",
			wantDetails: map[string]any{"state": "APPROVED"},
		},
		{
			name:        "commented",
			event:       model.TimelineEvent{Event: "commented", Actor: actor("bob"), Body: "LGTM"},
			wantSummary: "bob commented",
			wantDetails: map[string]any{"body": "LGTM"},
		},
		{
			name:        "closed by commit",
			event:       model.TimelineEvent{Event: "closed", Actor: actor("bob"), CommitID: "abc"},
			wantSummary: "bob closed this",
			wantDetails: map[string]any{"commitId": "abc"},
		},
		{
			name:        "review requested from a team",
			event:       model.TimelineEvent{Event: "review_requested", Actor: actor("bob"), Requester: actor("bob"), ReviewTeam: "core"},
			wantSummary: "bob requested a review from team core",
			wantDetails: map[string]any{"team": "core", "requester": "bob"},
		},
		{
			name:        "missing actor",
			event:       model.TimelineEvent{Event: "reopened"},
			wantSummary: "someone reopened this",
			wantDetails: map[string]any{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.event)
			assert.Equal(t, tc.wantSummary, got.Summary)
			assert.Equal(t, tc.wantDetails, got.Details)
		})
	}
}

func TestNormalize_UnknownKind(t *testing.T) {
	got := Normalize(model.TimelineEvent{Event: "auto_squash_enabled", Actor: actor("bob"), Body: "ignored"})

	assert.Equal(t, "auto_squash_enabled", got.Summary)
	require.NotNil(t, got.Details)
	assert.Empty(t, got.Details)
}

func TestNormalize_NilSubRecords(t *testing.T) {
	kinds := []string{
		"committed", "labeled", "unlabeled", "assigned", "unassigned", "milestoned", "demilestoned",
		"renamed", "cross-referenced", "referenced", "reviewed", "commented", "closed", "reopened",
		"merged", "head_ref_deleted", "head_ref_force_pushed", "review_requested",
		"review_request_removed", "locked", "unlocked", "mentioned", "subscribed", "unsubscribed",
		"connected", "disconnected", "marked_as_duplicate", "transferred", "pinned", "unpinned",
		"convert_to_draft", "ready_for_review",
	}
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			assert.NotPanics(t, func() {
				got := Normalize(model.TimelineEvent{Event: kind})
				assert.NotEmpty(t, got.Summary)
				assert.NotNil(t, got.Details)
			})
		})
	}
}
