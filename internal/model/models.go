// internal/model/models.go
package model

import (
	"time"
)

// SyncType tells whether a run mirrored everything or only what changed since the last run.
type SyncType string

const (
	SyncTypeFull    SyncType = "full"
	SyncTypePartial SyncType = "partial"
)

// OpenSourceOrgID is the external id of the synthetic organization grouping curated repositories.
const OpenSourceOrgID int64 = 0

// OpenSourceOrgLogin is the login of the synthetic organization.
const OpenSourceOrgLogin = "OpenSource"

// User is the owner of all mirrored data and of the GitHub credential used to fetch it.
type User struct {
	ID             int64      `json:"id"`
	Login          string     `json:"login"`
	AccessToken    string     `json:"-"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt"`
	LastSyncType   SyncType   `json:"lastSyncType"`
	SyncInProgress bool       `json:"syncInProgress"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Actor is a GitHub account referenced from another record. Every field is optional.
type Actor struct {
	ID        int64  `json:"id,omitempty"`
	Login     string `json:"login,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	URL       string `json:"url,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Organization represents a GitHub organization visible to the user.
type Organization struct {
	GithubID    int64  `json:"githubId"`
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	ReposURL    string `json:"reposUrl,omitempty"`
	MembersURL  string `json:"membersUrl,omitempty"`
	Synthetic   bool   `json:"synthetic,omitempty"`
	UserID      int64  `json:"userId"`
}

// Repository represents the metadata of a GitHub repository.
type Repository struct {
	GithubID       int64      `json:"githubId"`
	Name           string     `json:"name"`
	FullName       string     `json:"fullName"`
	Owner          Actor      `json:"owner"`
	Description    string     `json:"description,omitempty"`
	URL            string     `json:"url,omitempty"`
	Private        bool       `json:"isPrivate"`
	Language       string     `json:"language,omitempty"`
	StarsCount     int        `json:"starsCount"`
	ForksCount     int        `json:"forksCount"`
	OpenIssues     int        `json:"openIssuesCount"`
	DefaultBranch  string     `json:"defaultBranch,omitempty"`
	RepoCreatedAt  *time.Time `json:"repoCreatedAt,omitempty"`
	RepoUpdatedAt  *time.Time `json:"repoUpdatedAt,omitempty"`
	RepoPushedAt   *time.Time `json:"repoPushedAt,omitempty"`
	OrganizationID int64      `json:"organizationId"`
	UserID         int64      `json:"userId"`
}

// CommitIdentity is the git-level author or committer of a commit.
type CommitIdentity struct {
	Name  string     `json:"name,omitempty"`
	Email string     `json:"email,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// Verification holds the signature verification metadata of a commit.
type Verification struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

type Commit struct {
	SHA           string         `json:"sha"`
	Message       string         `json:"message"`
	URL           string         `json:"url,omitempty"`
	Author        CommitIdentity `json:"author"`
	Committer     CommitIdentity `json:"committer"`
	AuthorUser    *Actor         `json:"authorUser,omitempty"`
	CommitterUser *Actor         `json:"committerUser,omitempty"`
	Verification  *Verification  `json:"verification,omitempty"`
	CommentCount  int            `json:"commentCount"`
	RepositoryID  int64          `json:"repositoryId"`
	UserID        int64          `json:"userId"`
}

// CommitRef points from a pull request to one of its commits.
type CommitRef struct {
	SHA string `json:"sha"`
}

type PullRequest struct {
	GithubID     int64       `json:"githubId"`
	Number       int         `json:"number"`
	Title        string      `json:"title"`
	Body         string      `json:"body,omitempty"`
	State        string      `json:"state"`
	URL          string      `json:"url,omitempty"`
	Draft        bool        `json:"draft"`
	Merged       bool        `json:"merged"`
	Author       *Actor      `json:"author,omitempty"`
	Assignee     *Actor      `json:"assignee,omitempty"`
	Labels       []string    `json:"labels"`
	Commits      []CommitRef `json:"commits"`
	CreatedAt    *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time  `json:"updatedAt,omitempty"`
	ClosedAt     *time.Time  `json:"closedAt,omitempty"`
	MergedAt     *time.Time  `json:"mergedAt,omitempty"`
	RepositoryID int64       `json:"repositoryId"`
	UserID       int64       `json:"userId"`
}

// Reactions counts the reactions left on an issue.
type Reactions struct {
	TotalCount int `json:"totalCount"`
	PlusOne    int `json:"plusOne"`
	MinusOne   int `json:"minusOne"`
	Laugh      int `json:"laugh"`
	Hooray     int `json:"hooray"`
	Confused   int `json:"confused"`
	Heart      int `json:"heart"`
	Rocket     int `json:"rocket"`
	Eyes       int `json:"eyes"`
}

type Issue struct {
	GithubID     int64      `json:"githubId"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	State        string     `json:"state"`
	URL          string     `json:"url,omitempty"`
	Author       *Actor     `json:"author,omitempty"`
	Assignees    []Actor    `json:"assignees"`
	Labels       []string   `json:"labels"`
	ClosedBy     *Actor     `json:"closedBy,omitempty"`
	Reactions    *Reactions `json:"reactions,omitempty"`
	Comments     int        `json:"comments"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
	RepositoryID int64      `json:"repositoryId"`
	UserID       int64      `json:"userId"`

	// IsPullRequest is set when the issues listing returned a pull request.
	IsPullRequest bool `json:"-"`
}

// IssueHistory is one normalized timeline event of an issue.
type IssueHistory struct {
	EventID      string         `json:"eventId"`
	Surrogate    bool           `json:"surrogateId,omitempty"`
	Event        string         `json:"event"`
	Actor        *Actor         `json:"actor,omitempty"`
	CreatedAt    *time.Time     `json:"createdAt,omitempty"`
	Summary      string         `json:"summary"`
	Details      map[string]any `json:"details"`
	IssueID      int64          `json:"issueId"`
	RepositoryID int64          `json:"repositoryId"`
	UserID       int64          `json:"userId"`
}

// OrganizationUser is a member of an organization, or a contributor of a curated repository.
type OrganizationUser struct {
	GithubID       int64  `json:"githubId"`
	Login          string `json:"login"`
	Name           string `json:"name,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	URL            string `json:"url,omitempty"`
	Company        string `json:"company,omitempty"`
	Location       string `json:"location,omitempty"`
	Contributions  int    `json:"contributions,omitempty"`
	OrganizationID int64  `json:"organizationId"`
	UserID         int64  `json:"userId"`
}

// TimelineEvent is a raw issue timeline record as returned by GitHub, reduced to the fields
// the normalizer understands. Every sub-record is optional.
type TimelineEvent struct {
	ID          *int64
	Event       string
	Actor       *Actor
	CreatedAt   *time.Time
	CommitID    string
	SHA         string
	Message     string
	Author      *CommitIdentity
	Label       *TimelineLabel
	Assignee    *Actor
	Milestone   string
	Rename      *TimelineRename
	Source      *TimelineSource
	State       string
	Body        string
	User        *Actor
	Reviewer    *Actor
	Requester   *Actor
	ReviewTeam  string
	SubmittedAt *time.Time
	URL         string
}

type TimelineLabel struct {
	Name  string
	Color string
}

type TimelineRename struct {
	From string
	To   string
}

// TimelineSource is the issue or pull request that cross-referenced the current one.
type TimelineSource struct {
	Type        string
	IssueNumber int
	IssueTitle  string
	IssueURL    string
	Repository  string
	IsPull      bool
}

// Member is a listed organization member or repository contributor before enrichment.
type Member struct {
	GithubID      int64
	Login         string
	AvatarURL     string
	URL           string
	Contributions int
}

// UserDetail is the enrichment record returned by the user-detail endpoint.
type UserDetail struct {
	GithubID  int64
	Login     string
	Name      string
	AvatarURL string
	URL       string
	Company   string
	Location  string
}
