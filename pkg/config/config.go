package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Feed struct {
		WebSocketURL string   `yaml:"websocket_url"`
		RestURL      string   `yaml:"rest_url"`
		Symbols      []string `yaml:"symbols"`
		Timeframes   []string `yaml:"timeframes"`
		PingInterval time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Detection struct {
		ATRPeriod          int     `yaml:"atr_period"`
		ATRMult            float64 `yaml:"atr_mult"`
		BodyMinRatio       float64 `yaml:"body_min_ratio"`
		WickMaxRatio       float64 `yaml:"wick_max_ratio"`
		Lookahead          int     `yaml:"lookahead"`
		ImpulseMinDir      int     `yaml:"impulse_min_dir_candles"`
		ImpulseMinNetMove  float64 `yaml:"impulse_min_net_move"`
		MaxTouches         int     `yaml:"max_touches"`
		ZoneExpiryBars     int     `yaml:"zone_expiry_bars"`
		ZoneMergeThreshold float64 `yaml:"zone_merge_threshold"`
		VolumeMeanWindow   int     `yaml:"volume_mean_window"`
		LiquiditySweep     struct {
			Enabled      bool    `yaml:"enabled"`
			WickRatio    float64 `yaml:"wick_ratio"`
			ReversalBars int     `yaml:"reversal_bars"`
		} `yaml:"liquidity_sweep"`
		Weights struct {
			Body    float64 `yaml:"body"`
			Impulse float64 `yaml:"impulse"`
			Touch   float64 `yaml:"touch"`
			Volume  float64 `yaml:"volume"`
			Sweep   float64 `yaml:"sweep"`
		} `yaml:"score_weights"`
	} `yaml:"detection"`
	Session struct {
		BufferCapacity  int           `yaml:"buffer_capacity"`
		PreloadLimit    int           `yaml:"preload_limit"`
		NotifyOnPreload bool          `yaml:"notify_on_preload"`
		GapRepreload    int           `yaml:"gap_repreload_bars"`
		Reconnect       struct {
			BaseDelay time.Duration `yaml:"base_delay"`
			MaxDelay  time.Duration `yaml:"max_delay"`
			Jitter    time.Duration `yaml:"jitter"`
		} `yaml:"reconnect"`
	} `yaml:"session"`
	Notify struct {
		ScoreMin    float64       `yaml:"score_min"`
		RateLimit   int           `yaml:"rate_limit"`
		RateWindow  time.Duration `yaml:"rate_window"`
	} `yaml:"notify"`
	Dedup struct {
		Mode string `yaml:"mode"` // memory, file, redis
		Path string `yaml:"path"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"dedup"`
	Telegram struct {
		Enabled  bool          `yaml:"enabled"`
		BotToken string        `yaml:"bot_token"`
		ChatID   string        `yaml:"chat_id"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"telegram"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("TIMEFRAMES"); v != "" {
		c.Feed.Timeframes = strings.Split(v, ",")
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("DEDUP_MODE"); v != "" {
		c.Dedup.Mode = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Feed.WebSocketURL == "" {
		c.Feed.WebSocketURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Feed.RestURL == "" {
		c.Feed.RestURL = "https://api.binance.com"
	}
	if c.Feed.PingInterval <= 0 {
		c.Feed.PingInterval = 20 * time.Second
	}
	d := &c.Detection
	if d.ATRPeriod == 0 {
		d.ATRPeriod = 14
	}
	if d.ATRMult == 0 {
		d.ATRMult = 1.0
	}
	if d.BodyMinRatio == 0 {
		d.BodyMinRatio = 0.5
	}
	if d.WickMaxRatio == 0 {
		d.WickMaxRatio = 0.3
	}
	if d.Lookahead == 0 {
		d.Lookahead = 10
	}
	if d.ImpulseMinDir == 0 {
		d.ImpulseMinDir = 6
	}
	if d.ImpulseMinNetMove == 0 {
		d.ImpulseMinNetMove = 1.5
	}
	if d.MaxTouches == 0 {
		d.MaxTouches = 5
	}
	if d.ZoneExpiryBars == 0 {
		d.ZoneExpiryBars = 100
	}
	if d.ZoneMergeThreshold == 0 {
		d.ZoneMergeThreshold = 0.5
	}
	if d.VolumeMeanWindow == 0 {
		d.VolumeMeanWindow = 20
	}
	if d.LiquiditySweep.WickRatio == 0 {
		d.LiquiditySweep.WickRatio = 0.6
	}
	if d.LiquiditySweep.ReversalBars == 0 {
		d.LiquiditySweep.ReversalBars = 3
	}
	w := &d.Weights
	if w.Body == 0 && w.Impulse == 0 && w.Touch == 0 && w.Volume == 0 && w.Sweep == 0 {
		w.Body, w.Impulse, w.Touch, w.Volume, w.Sweep = 0.25, 0.30, 0.20, 0.15, 0.10
	}
	s := &c.Session
	if s.BufferCapacity == 0 {
		s.BufferCapacity = 500
	}
	if s.PreloadLimit == 0 {
		s.PreloadLimit = 200
	}
	if s.GapRepreload == 0 {
		s.GapRepreload = 3
	}
	if s.Reconnect.BaseDelay <= 0 {
		s.Reconnect.BaseDelay = time.Second
	}
	if s.Reconnect.MaxDelay <= 0 {
		s.Reconnect.MaxDelay = 5 * time.Minute
	}
	if s.Reconnect.Jitter < 0 {
		s.Reconnect.Jitter = 0
	}
	if c.Notify.RateLimit == 0 {
		c.Notify.RateLimit = 10
	}
	if c.Notify.RateWindow <= 0 {
		c.Notify.RateWindow = time.Minute
	}
	if c.Dedup.Mode == "" {
		c.Dedup.Mode = "file"
	}
	if c.Dedup.Path == "" {
		c.Dedup.Path = "data/dedup_state.json"
	}
	if c.Telegram.Timeout <= 0 {
		c.Telegram.Timeout = 10 * time.Second
	}
}

// Validate checks the configuration. Any error here is fatal at startup.
func (c *Config) Validate() error {
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	if len(c.Feed.Timeframes) == 0 {
		return fmt.Errorf("feed.timeframes cannot be empty")
	}

	d := &c.Detection
	if d.ATRPeriod <= 0 {
		return fmt.Errorf("detection.atr_period must be positive, got %d", d.ATRPeriod)
	}
	if d.ATRMult <= 0 {
		return fmt.Errorf("detection.atr_mult must be positive, got %v", d.ATRMult)
	}
	if d.BodyMinRatio <= 0 || d.WickMaxRatio <= 0 {
		return fmt.Errorf("detection body/wick ratios must be positive")
	}
	if d.Lookahead <= 0 {
		return fmt.Errorf("detection.lookahead must be positive, got %d", d.Lookahead)
	}
	if d.ImpulseMinDir <= 0 || d.ImpulseMinDir > d.Lookahead {
		return fmt.Errorf("detection.impulse_min_dir_candles must be in 1..lookahead, got %d", d.ImpulseMinDir)
	}
	if d.ImpulseMinNetMove <= 0 {
		return fmt.Errorf("detection.impulse_min_net_move must be positive, got %v", d.ImpulseMinNetMove)
	}
	if d.MaxTouches <= 0 {
		return fmt.Errorf("detection.max_touches must be positive, got %d", d.MaxTouches)
	}
	if d.ZoneExpiryBars <= 0 {
		return fmt.Errorf("detection.zone_expiry_bars must be positive, got %d", d.ZoneExpiryBars)
	}
	if d.ZoneMergeThreshold <= 0 || d.ZoneMergeThreshold > 1 {
		return fmt.Errorf("detection.zone_merge_threshold must be in (0,1], got %v", d.ZoneMergeThreshold)
	}

	w := d.Weights
	sum := w.Body + w.Impulse + w.Touch + w.Volume + w.Sweep
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("detection.score_weights must sum to 1.0, got %v", sum)
	}

	s := &c.Session
	minBuf := d.ATRPeriod + d.Lookahead + 1
	if s.BufferCapacity < minBuf {
		return fmt.Errorf("session.buffer_capacity must be at least atr_period+lookahead+1 (%d), got %d", minBuf, s.BufferCapacity)
	}
	if s.PreloadLimit < 0 || s.PreloadLimit > s.BufferCapacity {
		return fmt.Errorf("session.preload_limit must be in 0..buffer_capacity, got %d", s.PreloadLimit)
	}
	if s.Reconnect.BaseDelay > s.Reconnect.MaxDelay {
		return fmt.Errorf("session.reconnect.base_delay must not exceed max_delay")
	}

	if c.Notify.ScoreMin < 0 || c.Notify.ScoreMin > 1 {
		return fmt.Errorf("notify.score_min must be in [0,1], got %v", c.Notify.ScoreMin)
	}

	switch c.Dedup.Mode {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("dedup.mode must be 'memory', 'file' or 'redis', got '%s'", c.Dedup.Mode)
	}
	if c.Dedup.Mode == "file" && c.Dedup.Path == "" {
		return fmt.Errorf("dedup.path is required for file mode")
	}
	if c.Dedup.Mode == "redis" && c.Dedup.Redis.Addr == "" {
		return fmt.Errorf("dedup.redis.addr is required for redis mode")
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}

	return nil
}
