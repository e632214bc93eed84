package settings

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// consts
const (
	Name = "Parley"
)

// Config ...
type Config struct {
	Name    string `ignored:"true"`
	Version string `ignored:"true"`
	Develop bool   `envconfig:"DEVELOP"`

	ServiceURL     string        `envconfig:"SERVICE_URL" default:"http://localhost:5000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`

	HTTPListen   string   `envconfig:"HTTP_LISTEN" default:"127.0.0.1:5011"`
	AllowOrigins []string `envconfig:"allow_origins" default:"*"` // websocket: 允许的 Origin 来源
	RateLimit    string   `envconfig:"rate_limit" default:"30-S"`

	RedisURI   string        `envconfig:"redis_uri" default:"redis://localhost:6379/1"`
	SessionKey string        `envconfig:"session_key" default:"parley-session"`
	SessionTTL time.Duration `envconfig:"session_ttl" default:"168h"`

	VoiceNoticeDelay time.Duration `envconfig:"voice_notice_delay" default:"2s"`
	MicCommand       string        `envconfig:"mic_command"` // 录音命令, 音频写到 stdout, 如: arecord -q -f S16_LE -r 16000 -t wav
	PresetFile       string        `envconfig:"preset_file"`
}

var (
	// Current 当前配置
	Current = new(Config)
)

func init() {
	if err := envconfig.Process(Name, Current); err != nil {
		log.Printf("envconfig process fail: %s", err)
	}

	Current.Name = Name
	Current.Version = version
}

// Usage 打印配置帮助
func Usage() error {
	log.Printf("ver: %s", Current.Version)
	return envconfig.Usage(Current.Name, Current)
}

// InDevelop ...
func InDevelop() bool {
	return Current.Develop
}

// AllowAllOrigins ...
func AllowAllOrigins() bool {
	return 0 == len(Current.AllowOrigins) ||
		1 == len(Current.AllowOrigins) && Current.AllowOrigins[0] == "*"
}
