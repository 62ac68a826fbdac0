package v1

const ServerConfigKind = "ServerConfig"

type ServerConfig struct {
	Kind     string           `yaml:"kind" json:"kind" validate:"required,eq=ServerConfig"`
	Metadata Metadata         `yaml:"metadata" json:"metadata"`
	Spec     ServerConfigSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name"`
}

type ServerConfigSpec struct {
	// CacheDir holds one staging directory per session. Defaults to <user cache dir>/pdfebc-web.
	CacheDir string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty" template:""`

	// Listen is the HTTP listen address (default ":8080").
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty" validate:"omitempty,hostname_port" template:""`

	Compressor *CompressorSpec `yaml:"compressor,omitempty" json:"compressor,omitempty"`
	Archive    *ArchiveSpec    `yaml:"archive,omitempty" json:"archive,omitempty"`
	Queue      *QueueSpec      `yaml:"queue,omitempty" json:"queue,omitempty"`

	// Delivery configures where compress-and-deliver results go. Without it the asynchronous
	// workflow is disabled and only direct downloads are offered.
	Delivery *DeliverySpec `yaml:"delivery,omitempty" json:"delivery,omitempty"`
}

// CompressorSpec configures the external compression binary.
type CompressorSpec struct {
	// Binary is a name resolved on PATH or an absolute path (default "gs").
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty" template:""`

	// Level is the Ghostscript PDFSETTINGS preset.
	Level string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=screen ebook printer prepress default"`

	// Timeout bounds a single file, as a Go duration (default "5m").
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type ArchiveSpec struct {
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty" validate:"omitempty,oneof=gzip zstd none"`
}

type QueueSpec struct {
	Workers     int `yaml:"workers,omitempty" json:"workers,omitempty" validate:"omitempty,min=1,max=64"`
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty" validate:"omitempty,min=1,max=20"`

	// RetryBackoff is the delay before the first retry of a failed task, as a Go duration
	// (default "2s"). Later retries wait proportionally longer.
	RetryBackoff string `yaml:"retry_backoff,omitempty" json:"retry_backoff,omitempty"`

	// Redis switches from the in-process queue to a shared Redis list.
	Redis *RedisQueueSpec `yaml:"redis,omitempty" json:"redis,omitempty"`
}

type RedisQueueSpec struct {
	URL string `yaml:"url" json:"url" validate:"required" template:""`
	Key string `yaml:"key,omitempty" json:"key,omitempty" template:""`
}

// DeliverySpec configures the delivery destination (exactly one of the sink fields must be set).
type DeliverySpec struct {
	// Bundle selects what is delivered: the archive artifact (default) or each compressed file.
	Bundle string `yaml:"bundle,omitempty" json:"bundle,omitempty" validate:"omitempty,oneof=archive files"`

	Email      *EmailDeliverySpec      `yaml:"email,omitempty" json:"email,omitempty"`
	S3         *S3DeliverySpec         `yaml:"s3,omitempty" json:"s3,omitempty"`
	Filesystem *FilesystemDeliverySpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
}

type EmailDeliverySpec struct {
	Host     string   `yaml:"host" json:"host" validate:"required" template:""`
	Port     int      `yaml:"port,omitempty" json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Username string   `yaml:"username,omitempty" json:"username,omitempty" template:""`
	Password string   `yaml:"password,omitempty" json:"password,omitempty" template:""`
	From     string   `yaml:"from" json:"from" validate:"required" template:""`
	To       []string `yaml:"to" json:"to" validate:"required,min=1,dive,required" template:""`
	Subject  string   `yaml:"subject,omitempty" json:"subject,omitempty" template:""`

	// TLS is "opportunistic" (default), "mandatory" or "none".
	TLS string `yaml:"tls,omitempty" json:"tls,omitempty" validate:"omitempty,oneof=opportunistic mandatory none"`
}

type S3DeliverySpec struct {
	Bucket         string             `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Region         *string            `yaml:"region,omitempty" json:"region,omitempty" template:""`
	Endpoint       *string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url" template:""`
	Prefix         *string            `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	ForcePathStyle bool               `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	Credentials    *S3CredentialsSpec `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

type S3CredentialsSpec struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" validate:"required" template:""`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" validate:"required" template:""`
}

type FilesystemDeliverySpec struct {
	Path string `yaml:"path" json:"path" validate:"required" template:""`
}
