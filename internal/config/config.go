package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client against the external calendar service.
var UserAgent = "Go-HebSync/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName     = "Go HebSync"
	AppID       = "com.github.tartampluch.go-hebsync"
	LogFileName = "app.log"

	// AppMarker is the correlation value stamped on every event the service
	// creates on the external calendar. Cleanup recognizes "our" events by it.
	AppMarker = "go-hebsync"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescConfig   = "Path to the YAML settings file"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Defaults & Business Logic
// -----------------------------------------------------------------------------

const (
	// DefaultTimezone is assumed for tenants that never set one.
	DefaultTimezone = "Asia/Jerusalem"

	// DefaultSunsetHour is the fixed local hour at which the Hebrew day rolls
	// over. No geolocation: 19:00 local is the boundary everywhere.
	DefaultSunsetHour = 19

	// ProjectionYears is how many years ahead occurrences are projected.
	ProjectionYears = 10

	// Reminder offsets applied to every generated event (popup, minutes).
	ReminderMinutesDayBefore  = 1440
	ReminderMinutesHourBefore = 60

	DefaultLanguage = "he"

	// SyncChunkSize bounds how many persons are reconciled in parallel.
	SyncChunkSize = 5

	// DeletionBatchSize is the number of synced records handled per
	// deletion-job invocation before the continuation is re-enqueued.
	DeletionBatchSize = 50

	// JobTimeBudget is the conservative per-invocation budget for bulk jobs,
	// kept well under any platform execution ceiling.
	JobTimeBudget = 4 * time.Minute

	// TokenMinValidity is the remaining lifetime under which a cached access
	// token is refreshed instead of reused.
	TokenMinValidity = time.Minute
)

// CronSpecHourly runs at minute 0 of every hour, timezone-neutral.
const CronSpecHourly = "0 * * * *"

// Calendar preference values. A person override wins over the group
// preference, which wins over the tenant default, which falls back to "both".
const (
	PreferenceGregorian = "gregorian"
	PreferenceHebrew    = "hebrew"
	PreferenceBoth      = "both"
)

// Calendar system tags used in descriptor keys and event correlation.
const (
	SystemGregorian = "gregorian"
	SystemHebrew    = "hebrew"
)

// Wishlist priorities, highest first.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// -----------------------------------------------------------------------------
// Record Store Collections & Fields
// -----------------------------------------------------------------------------

const (
	CollectionPersons     = "persons"
	CollectionTenants     = "tenants"
	CollectionGroups      = "groups"
	CollectionWishlist    = "wishlist_items"
	CollectionJobs        = "jobs"
	CollectionCredentials = "credentials"

	FieldTenantID = "tenant_id"
	FieldPersonID = "person_id"
	FieldArchived = "archived"
)

// Correlation metadata keys stamped into each external event's private
// properties. Deletion and orphan cleanup match on these, never on calendar
// ownership alone.
const (
	CorrAppKey    = "createdByApp"
	CorrTenantKey = "tenantId"
	CorrPersonKey = "personId"
)

// -----------------------------------------------------------------------------
// Job Queue
// -----------------------------------------------------------------------------

const (
	TopicSyncJobs     = "jobs.calendar-sync"
	TopicDeletionJobs = "jobs.deletion"

	HandlerSyncJobs     = "calendar_sync_handler"
	HandlerDeletionJobs = "deletion_handler"

	JobKindSync     = "sync"
	JobKindDeletion = "deletion"
)

// Tenant deletion status values.
const (
	DeletionStatusPending = "PENDING"
	DeletionStatusNone    = ""
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyCalendarName  = "calendar_name"
	TKeyTitleGreg     = "event_title_gregorian"
	TKeyTitleHebrew   = "event_title_hebrew"
	TKeyDescWishlist  = "desc_wishlist"
	TKeyDescGregDate  = "desc_gregorian_date"
	TKeyDescHebDate   = "desc_hebrew_date"
	TKeyDescSunset    = "desc_after_sunset"
	TKeyDescGroups    = "desc_groups"
	TKeyDescNotes     = "desc_notes"
	TKeyDescZodiac    = "desc_zodiac"
	TKeyZodiacPrefix  = "zodiac_" // full key is zodiac_<sign>, e.g. zodiac_aries
	TKeyFeedEventHeb  = "feed_event_hebrew"
	TKeyFeedEventGreg = "feed_event_gregorian"
)

// SupportedLanguages defines the available event/calendar languages (ISO 639-1).
var SupportedLanguages = []string{"en", "he", "es"}

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	// DateFormatISO is the canonical YYYY-MM-DD layout used for every persisted
	// date string (birth dates, occurrence dates, process stamps).
	DateFormatISO = "2006-01-02"

	// Date layouts accepted when parsing vCard BDAY fields on import.
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// DefaultLeapYear is the fallback year for year-less vCard dates.
	DefaultLeapYear = 2000

	// UID generation for feed events.
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"
	UIDSalt         = "go-hebsync-v1-"
	ICalDomain      = "gohebsync"

	// FormatDescriptorKey is personID:system:year, the stable identity of one
	// generated event across rebuilds.
	FormatDescriptorKey = "%s:%s:%d"

	// File extensions accepted by the vCard importer.
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard (feed + importer)
// -----------------------------------------------------------------------------

const (
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go HebSync//Engine//EN"
	ICalCalName   = "Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"
	VCardN    = "N"

	FeedReminderTrigger = "-P1D"
	DefaultICalRefresh  = 1 * time.Hour

	// StubVCalendar is the minimal valid iCalendar object served when a tenant
	// has no upcoming occurrences.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	FallbackName = "Unknown"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	MaxRequestBodySize  = 1 * 1024 * 1024   // 1MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RetryAfterSeconds   = "10"
	AllowedMethodsRead  = "GET, HEAD"
	AllowedMethodsWrite = "POST"

	RouteHealth     = "/healthz"
	RouteFeed       = "/feed/"
	RouteRecalc     = "/api/recalculate"
	RouteSyncJob    = "/api/jobs/sync"
	RouteDeleteJob  = "/api/jobs/delete"
	RouteImport     = "/api/import"
	AddrSeparator   = ":"
	DefaultListen   = "127.0.0.1:18080"
	DefaultDataDir  = "data"
	DefaultAPIBase  = "https://calendar.example.com/v3"
	EnvPrefix       = "HEBSYNC_"
	EnvKeyDelimiter = "_"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAuthorization   = "Authorization"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	BearerPrefix        = "Bearer "

	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrDateOutOfRange   = "date out of supported range"
	ErrInvalidDate      = "invalid gregorian date"
	ErrUnknownMonth     = "unknown hebrew month name"
	ErrTenantNotFound   = "tenant not found"
	ErrPersonNotFound   = "person not found"
	ErrRecordDecode     = "failed to decode stored record"
	ErrRecordEncode     = "failed to encode record"
	ErrStoreOpen        = "failed to open record store"
	ErrRecalcFailed     = "hebrew recalculation failed"
	ErrCalendarCreate   = "failed to create external calendar"
	ErrCalendarVerify   = "failed to verify external calendar"
	ErrEventUpsert      = "failed to upsert calendar event"
	ErrEventDelete      = "failed to delete calendar event"
	ErrAuthRequired     = "external calendar authentication required"
	ErrCredentialFetch  = "failed to load stored credential"
	ErrTokenRefresh     = "failed to refresh access token"
	ErrJobDecode        = "failed to decode job payload"
	ErrJobPersist       = "failed to persist job progress"
	ErrQueuePublish     = "failed to publish continuation"
	ErrSettingsLoad     = "failed to load settings"
	ErrSettingsInvalid  = "invalid settings"
	ErrTimezoneLoad     = "failed to load tenant timezone"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrWriteResp        = "failed to write response body"
	ErrRequestDecode    = "failed to decode request body"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app data dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrCronSchedule     = "failed to register cron schedule"
	ErrRouterRun        = "job router terminated"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Feed initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgBadRequest   = "Bad Request"
	HTTPMsgNotFound     = "Not Found"
	HTTPMsgOK           = "ok"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting      = "Starting application"
	MsgAppStop          = "Application stopped gracefully"
	MsgServerListen     = "HTTP server listening"
	MsgServerStop       = "Shutting down HTTP server..."
	MsgRecalcStart      = "Recalculating hebrew data"
	MsgRecalcSkipped    = "Recalculation skipped"
	MsgRecalcDone       = "Recalculation persisted"
	MsgProjectionGap    = "Projection skipped years with no valid construction"
	MsgCalendarGhost    = "Bound calendar no longer exists, clearing binding"
	MsgCalendarRenamed  = "Calendar renamed to expected localized name"
	MsgCalendarCreated  = "Created new external calendar"
	MsgEventCreated     = "Created calendar event"
	MsgEventUpdated     = "Updated calendar event"
	MsgEventUnchanged   = "Calendar event unchanged, skipping"
	MsgOrphanRemoved    = "Removed orphaned calendar event"
	MsgOrphanSweepDone  = "Orphan sweep finished"
	MsgOrphanSweepFail  = "Orphan sweep failed, events left for the next sync"
	MsgSyncChunkDone    = "Sync chunk finished"
	MsgJobStarted       = "Bulk job invocation started"
	MsgJobContinued     = "Budget reached, continuation enqueued"
	MsgJobFinished      = "Bulk job complete"
	MsgJobAuthFailOpen  = "Credential invalid, skipping remote cleanup and erasing owned data"
	MsgDeletionBatch    = "Deletion batch finished"
	MsgDeletionSkipped  = "Deletion requested but tenant is not pending deletion"
	MsgDeletionErased   = "Owned data erased, account deletion complete"
	MsgSchedulerTick    = "Hourly scheduler tick"
	MsgTenantMidnight   = "Tenant at local midnight, refreshing stale records"
	MsgTenantStamped    = "Tenant stamped as processed for local day"
	MsgTenantSkipped    = "Tenant skipped"
	MsgTokenRefreshing  = "Access token expired, refreshing"
	MsgTokenRevoked     = "Refresh token revoked, clearing stored credential"
	MsgCacheUpdated     = "Feed cache updated"
	MsgSkippedCard      = "Skipping malformed vCard"
	MsgSkippedDate      = "Skipping invalid date format"
	MsgImportDone       = "vCard import finished"
	MsgLocaleSkip       = "Skipping non-locale file"
	MsgLocaleBadName    = "Skipping malformed locale filename"
	MsgLocaleLoaded     = "Locale loaded successfully"
	MsgTransMissing     = "Missing translation key"
	MsgWorkerStart      = "Background worker started"
	MsgWorkerStop       = "Worker stopping due to context cancellation"
	MsgLogWarning       = "Warning: %s at %s: %v\n"
	MsgStaleTouched     = "Stale records refreshed"
	MsgSettingsEffect   = "Effective settings"
	MsgFeedGenSuccess   = "Feed generation successful"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyTenant    = "tenant_id"
	LogKeyPerson    = "person_id"
	LogKeyOwner     = "owner_id"
	LogKeyJob       = "job_id"
	LogKeyKind      = "kind"
	LogKeyDecision  = "decision"
	LogKeyCalendar  = "calendar_id"
	LogKeyEvent     = "event_id"
	LogKeyTimezone  = "timezone"
	LogKeyLocalDate = "local_date"
	LogKeyCount     = "count"
	LogKeyDeleted   = "deleted"
	LogKeyRemaining = "remaining"
	LogKeySkipped   = "skipped_years"
	LogKeyFailures  = "failures"
	LogKeySuccesses = "successes"
	LogKeyDuration  = "duration_ms"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyValue     = "value"
	LogKeyName      = "name"
	LogKeyDOB       = "date_of_birth"
	LogKeyNext      = "next_occurrence"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyListen    = "listen"
	LogKeyDataDir   = "data_dir"
	LogKeyTopic     = "topic"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain      = "main"
	CompServer    = "server"
	CompStore     = "store"
	CompHebdate   = "hebdate"
	CompRecalc    = "recalc"
	CompEvents    = "events"
	CompCalendar  = "calendar_client"
	CompCreds     = "credentials"
	CompReconcile = "reconciler"
	CompDeletion  = "deletion"
	CompJobs      = "jobs"
	CompScheduler = "scheduler"
	CompImporter  = "importer"
	CompFeed      = "feed"
	CompI18n      = "i18n"
)
