package config

const (
	defaultConfigPath             = "~/.config/chest/config.toml"
	defaultDataDir                = "~/.local/share/chest"
	defaultStagingDir             = "~/.local/share/chest/staging"
	defaultBlobDir                = "~/.local/share/chest/blobs"
	defaultLogDir                 = "~/.local/share/chest/logs"
	defaultBind                   = "127.0.0.1:8080"
	defaultRoutePrefix            = "/chest-of-notes"
	defaultMaxUploadBytes         = 40 << 20
	defaultShutdownTimeoutSeconds = 30
	defaultSSEKeepaliveSeconds    = 20
	defaultSubscriberBuffer       = 16
	defaultFFmpegBinary           = "ffmpeg"
	defaultTranscodeConcurrency   = 2
	defaultVideoPreset            = "veryfast"
	defaultVideoCRF               = 23
	defaultAudioBitrate           = "128k"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			BlobDir:    defaultBlobDir,
			LogDir:     defaultLogDir,
		},
		Server: Server{
			Bind:                   defaultBind,
			RoutePrefix:            defaultRoutePrefix,
			AllowedOrigins:         []string{"http://localhost:3000"},
			MaxUploadBytes:         defaultMaxUploadBytes,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
			SSEKeepaliveSeconds:    defaultSSEKeepaliveSeconds,
			SubscriberBuffer:       defaultSubscriberBuffer,
		},
		Transcode: Transcode{
			FFmpegBinary:  defaultFFmpegBinary,
			MaxConcurrent: defaultTranscodeConcurrency,
			VideoPreset:   defaultVideoPreset,
			VideoCRF:      defaultVideoCRF,
			AudioBitrate:  defaultAudioBitrate,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Success:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
