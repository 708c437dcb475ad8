package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/overlord/internal/realtime"
)

const (
	VideoSourceRTP    = "rtp"
	VideoSourceFile   = "file"
	VideoSourceWebRTC = "webrtc"

	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

type Config struct {
	ServerAddr string

	ChatBaseURL  string
	ChatModel    string
	ChatTimeout  time.Duration
	SystemPrompt string

	HistoryLength  int
	FrameWidth     int
	JPEGQuality    int
	RevealDuration time.Duration
	RevealHold     time.Duration
	CycleInterval  time.Duration
	AutoStart      bool

	VideoSource string
	RTPAddr     string
	RTPMIMEType string
	ImagePath   string

	RTCICEServers       []realtime.ICEServerConfig
	RTCPortMin          int
	RTCPortMax          int
	RTCMaxSDPSize       int
	RTCKeyframeInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FrameTTL      time.Duration

	DatabaseDriver string
	DatabaseDSN    string

	LogLevel string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		ChatBaseURL:  getEnv("CHAT_BASE_URL", "http://localhost:1234"),
		ChatModel:    getEnv("CHAT_MODEL", "qwen/qwen2.5-vl-7b"),
		ChatTimeout:  getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		SystemPrompt: getEnv("SYSTEM_PROMPT", ""),

		HistoryLength:  getEnvInt("HISTORY_LENGTH", 2),
		FrameWidth:     getEnvInt("FRAME_WIDTH", 64),
		JPEGQuality:    getEnvInt("JPEG_QUALITY", 80),
		RevealDuration: getEnvDuration("REVEAL_DURATION", 5*time.Second),
		RevealHold:     getEnvDuration("REVEAL_HOLD", 5*time.Second),
		CycleInterval:  getEnvDuration("CYCLE_INTERVAL", 0),
		AutoStart:      getEnvBool("AUTO_START", false),

		VideoSource: strings.ToLower(getEnv("VIDEO_SOURCE", VideoSourceRTP)),
		RTPAddr:     getEnv("RTP_ADDR", "127.0.0.1:5004"),
		RTPMIMEType: getEnv("RTP_MIME_TYPE", "video/VP8"),
		ImagePath:   getEnv("IMAGE_PATH", ""),

		RTCICEServers: parseICEServers(
			getEnv("RTC_ICE_SERVERS", "stun:stun.l.google.com:19302"),
			getEnv("RTC_TURN_USERNAME", ""),
			getEnv("RTC_TURN_CREDENTIAL", ""),
		),
		RTCPortMin:          getEnvInt("RTC_PORT_MIN", 0),
		RTCPortMax:          getEnvInt("RTC_PORT_MAX", 0),
		RTCMaxSDPSize:       getEnvInt("RTC_MAX_SDP_SIZE", 64*1024),
		RTCKeyframeInterval: getEnvDuration("RTC_KEYFRAME_INTERVAL", 3*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		FrameTTL:      getEnvDuration("FRAME_TTL", 60*time.Second),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)),
		DatabaseDSN:    getEnv("DATABASE_DSN", "overlord.db"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseICEServers reads a comma separated URL list. TURN URLs get the shared
// credentials when they are set.
func parseICEServers(envValue, username, credential string) []realtime.ICEServerConfig {
	var servers []realtime.ICEServerConfig
	for _, url := range strings.Split(envValue, ",") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		server := realtime.ICEServerConfig{URLs: []string{url}}
		if username != "" && (strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:")) {
			server.Username = username
			server.Credential = credential
		}
		servers = append(servers, server)
	}

	if len(servers) == 0 {
		return []realtime.ICEServerConfig{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}

	return servers
}
