package constants

import "time"

// Store tables. The store is schemaless; these are the default table names
// and can be overridden through configuration.
const (
	TableQuestions = "Questions"
	TableAnswers   = "Answers"
	TableVotes     = "Votes"
	TableUsers     = "Users"
	TableBadges    = "Badges"
)

const (
	// DefaultHTTPTimeout bounds a single store request. A hung request
	// eventually fails through this timeout.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultPageSize is the feed page size requested from the store.
	DefaultPageSize = 10
	// MaxPageSize is the largest page the store will return.
	MaxPageSize = 100
	// DefaultRequestsPerSecond is the store's documented per-base rate limit.
	DefaultRequestsPerSecond = 5
	// DefaultSearchQuietPeriod is the debounce window for search keystrokes.
	DefaultSearchQuietPeriod = 500 * time.Millisecond
	// DefaultNotificationTTL is how long a badge notification stays visible.
	DefaultNotificationTTL = 3 * time.Second
	// DefaultXPPerLevel is the number of points per level.
	DefaultXPPerLevel = 100
	// MaxTags caps the tag set of a question.
	MaxTags = 5
)

// Points awarded for each action.
const (
	PointsQuestion       = 10
	PointsAnswer         = 5
	PointsUpvoteReceived = 1
)

// Badge names. They are the natural key of the badge catalog.
const (
	BadgeFirstQuestion  = "First Question"
	BadgeQuestionMaster = "Question Master"
	BadgeFirstAnswer    = "First Answer"
	BadgeAnswerGuru     = "Answer Guru"
	BadgeCenturion      = "Centurion"
)

// TagAll is the sentinel tag that clears the tag filter.
const TagAll = "All"

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)
