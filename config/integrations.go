package config

import (
	"strings"
	"time"
)

// FetchConfig controls attachment download and local staging.
type FetchConfig struct {
	// StagingDir is where downloaded attachments wait for their uploads.
	StagingDir string `env:"STAGING_DIR" envDefault:"/tmp/driveline"`

	// MaxRetries is the number of retries for transient download failures.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`

	// RetryDelay is the fixed delay between download retries.
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"5s"`

	// Timeout bounds a single download attempt.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to fetch configuration values.
func (f *FetchConfig) Sanitize() {
	f.StagingDir = strings.TrimSpace(f.StagingDir)
	if f.StagingDir == "" {
		f.StagingDir = "/tmp/driveline"
	}
	if f.MaxRetries < 0 {
		f.MaxRetries = 0
	}
	if f.RetryDelay < 0 {
		f.RetryDelay = 0
	}
	if f.Timeout < time.Second {
		f.Timeout = time.Second
	}
}

// DriveConfig controls the Google Drive integration.
type DriveConfig struct {
	// RootFolderName is the top-level folder created in each recipient's drive.
	RootFolderName string `env:"ROOT_FOLDER_NAME" envDefault:"LineBot"`

	// ClientID and ClientSecret identify the OAuth client used to refresh tokens.
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	// TokenURL is the OAuth token endpoint.
	TokenURL string `env:"TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`

	// UploadChunkSize is the resumable upload chunk size in bytes.
	UploadChunkSize int `env:"UPLOAD_CHUNK_SIZE" envDefault:"8388608"`
}

// Sanitize applies guardrails to drive configuration values.
func (d *DriveConfig) Sanitize() {
	d.RootFolderName = strings.TrimSpace(d.RootFolderName)
	if d.RootFolderName == "" {
		d.RootFolderName = "LineBot"
	}
	d.ClientID = strings.TrimSpace(d.ClientID)
	d.ClientSecret = strings.TrimSpace(d.ClientSecret)
	if d.UploadChunkSize < 256*1024 {
		d.UploadChunkSize = 256 * 1024
	}
}

// LineConfig controls the chat platform client.
type LineConfig struct {
	ChannelAccessToken string `env:"CHANNEL_ACCESS_TOKEN"`

	// APIBaseURL serves profiles, group summaries and push messages.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"https://api.line.me"`

	// DataBaseURL serves message content downloads.
	DataBaseURL string `env:"DATA_BASE_URL" envDefault:"https://api-data.line.me"`

	// Timeout bounds each API call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to chat platform configuration values.
func (l *LineConfig) Sanitize() {
	l.ChannelAccessToken = strings.TrimSpace(l.ChannelAccessToken)
	l.APIBaseURL = strings.TrimRight(strings.TrimSpace(l.APIBaseURL), "/")
	l.DataBaseURL = strings.TrimRight(strings.TrimSpace(l.DataBaseURL), "/")
	if l.APIBaseURL == "" {
		l.APIBaseURL = "https://api.line.me"
	}
	if l.DataBaseURL == "" {
		l.DataBaseURL = "https://api-data.line.me"
	}
	if l.Timeout <= 0 {
		l.Timeout = 30 * time.Second
	}
}

// ArchiveBackend selects where staged files are retained for re-drive.
type ArchiveBackend string

const (
	// ArchiveBackendNone disables retention; failed uploads cannot be re-driven.
	ArchiveBackendNone ArchiveBackend = "none"
	// ArchiveBackendLocal retains files in a local directory.
	ArchiveBackendLocal ArchiveBackend = "local"
	// ArchiveBackendS3 retains files in an S3-compatible bucket.
	ArchiveBackendS3 ArchiveBackend = "s3"
)

// ArchiveConfig controls retention of staged files whose uploads failed.
type ArchiveConfig struct {
	Backend ArchiveBackend `env:"BACKEND" envDefault:"local"`

	// Dir is the local archive directory (local backend).
	Dir string `env:"DIR" envDefault:"/var/lib/driveline/archive"`

	// S3 settings.
	Bucket          string `env:"BUCKET"`
	Prefix          string `env:"PREFIX"            envDefault:"failed/"`
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION"            envDefault:"us-east-1"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// Sanitize applies guardrails to archive configuration values.
func (a *ArchiveConfig) Sanitize() {
	a.Backend = ArchiveBackend(strings.ToLower(strings.TrimSpace(string(a.Backend))))
	switch a.Backend {
	case ArchiveBackendLocal:
		if strings.TrimSpace(a.Dir) == "" {
			a.Backend = ArchiveBackendNone
		}
	case ArchiveBackendS3:
		if strings.TrimSpace(a.Bucket) == "" {
			a.Backend = ArchiveBackendNone
		}
	default:
		a.Backend = ArchiveBackendNone
	}
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	if a.Region = strings.TrimSpace(a.Region); a.Region == "" {
		a.Region = "us-east-1"
	}
}

// IsEnabled reports whether failed uploads keep a copy for re-drive.
func (a *ArchiveConfig) IsEnabled() bool {
	return a.Backend != ArchiveBackendNone && a.Backend != ""
}
