package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
// 注意：时间字段统一使用毫秒

type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint       string `yaml:"endpoint" json:"endpoint"`
		ProducerTopics string `yaml:"producer_topics" json:"producer_topics"`
		AccessKey      string `yaml:"access_key" json:"access_key"`
		SecretKey      string `yaml:"secret_key" json:"secret_key"`
	} `yaml:"rocketmq" json:"rocketmq"`

	// Webhook 事件推送（Socket 推送网关等外部订阅方）
	Webhook struct {
		Enabled   bool   `yaml:"enabled" json:"enabled"`
		URL       string `yaml:"url" json:"url"`
		TimeoutMS int    `yaml:"timeout_ms" json:"timeout_ms"`
	} `yaml:"webhook" json:"webhook"`

	Observability struct {
		EnableProm bool   `yaml:"enable_prom" json:"enable_prom"`
		PromAddr   string `yaml:"prom_addr" json:"prom_addr"`
	} `yaml:"observability" json:"observability"`

	// Game 猜数字玩法参数
	Game struct {
		RoundDurationMS int64  `yaml:"round_duration_ms" json:"round_duration_ms"` // 单局时长（默认 60000）
		CheckIntervalMS int64  `yaml:"check_interval_ms" json:"check_interval_ms"` // 回合检查间隔（0=时长/30）
		NumberMin       int    `yaml:"number_min" json:"number_min"`               // 可投注数字下限（默认 1）
		NumberMax       int    `yaml:"number_max" json:"number_max"`               // 可投注数字上限（默认 10）
		WinMultiplier   int64  `yaml:"win_multiplier" json:"win_multiplier"`       // 中奖倍数（默认 9）
		MinBet          string `yaml:"min_bet" json:"min_bet"`                     // 最小投注额
		MaxBet          string `yaml:"max_bet" json:"max_bet"`                     // 最大投注额
		StartingBalance string `yaml:"starting_balance" json:"starting_balance"`   // 注册赠送余额（默认 1000）
		OutcomeLimit    int    `yaml:"outcome_limit" json:"outcome_limit"`         // 走势图返回条数上限
	} `yaml:"game" json:"game"`

	RateLimit struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		Global  struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			Burst             int `yaml:"burst" json:"burst"`
		} `yaml:"global" json:"global"`
		ByIP struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_ip" json:"by_ip"`
	} `yaml:"rate_limit" json:"rate_limit"`

	CORS struct {
		Enabled        bool     `yaml:"enabled" json:"enabled"`
		AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	} `yaml:"cors" json:"cors"`
}

// ApplyDefaults 为未配置的玩法参数补默认值（与最初线上版本保持一致）
func (c *Config) ApplyDefaults() {
	if c.Game.RoundDurationMS <= 0 {
		c.Game.RoundDurationMS = 60_000
	}
	if c.Game.CheckIntervalMS <= 0 {
		// 检查间隔必须显著小于单局时长，以约束结算延迟
		c.Game.CheckIntervalMS = c.Game.RoundDurationMS / 30
		if c.Game.CheckIntervalMS < 200 {
			c.Game.CheckIntervalMS = 200
		}
	}
	if c.Game.NumberMin <= 0 {
		c.Game.NumberMin = 1
	}
	if c.Game.NumberMax <= c.Game.NumberMin {
		c.Game.NumberMax = 10
	}
	if c.Game.WinMultiplier <= 0 {
		c.Game.WinMultiplier = 9
	}
	if strings.TrimSpace(c.Game.MinBet) == "" {
		c.Game.MinBet = "0.01"
	}
	if strings.TrimSpace(c.Game.MaxBet) == "" {
		c.Game.MaxBet = "1000000"
	}
	if strings.TrimSpace(c.Game.StartingBalance) == "" {
		c.Game.StartingBalance = "1000"
	}
	if c.Game.OutcomeLimit <= 0 {
		c.Game.OutcomeLimit = 200
	}
}

// Load 优先从 Nacos 配置中心读取配置，如果失败则从本地文件读取（兜底）
// 支持以下环境变量：
//   - NACOS_SERVER_ADDR: Nacos 服务器地址（如 "127.0.0.1:8848"，如果设置则优先从 Nacos 加载）
//   - NACOS_DATA_ID: 配置 Data ID（如 "play-earn.yaml"）
//   - NACOS_NAMESPACE / NACOS_GROUP: 可选，默认 public / DEFAULT_GROUP
//   - CONFIG_FILE: 配置文件路径（兜底方案，默认：config/dev.yaml）
func Load() (*Config, error) {
	// 1. 优先尝试从 Nacos 加载
	nacosServerAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if nacosServerAddr != "" {
		cfg, err := loadFromNacos()
		if err == nil {
			fmt.Printf("[Config]  配置已从 Nacos 加载: server=%s, dataId=%s, group=%s\n",
				nacosServerAddr,
				os.Getenv("NACOS_DATA_ID"),
				getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP"))
			cfg.ApplyDefaults()
			return cfg, nil
		}
		// Nacos 加载失败，记录错误并降级到本地文件
		fmt.Printf("[Config]  从 Nacos 加载配置失败，降级使用本地文件: error=%v\n", err)
	}

	// 2. 降级：从本地文件加载
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config/dev.yaml"
	}

	cfg, err := loadFromFile(configFile)
	if err == nil {
		fmt.Printf("[Config] 配置已从本地文件加载: file=%s\n", configFile)
		cfg.ApplyDefaults()
		return cfg, nil
	}

	return nil, fmt.Errorf("failed to load config from nacos and local file (%s): %w", configFile, err)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// loadFromFile 从本地 JSON 或 YAML 文件加载配置
func loadFromFile(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config

	switch ext := filepath.Ext(filePath); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .json, .yaml, .yml)", ext)
	}

	return &cfg, nil
}

// loadFromNacos 从 Nacos 配置中心加载配置
func loadFromNacos() (*Config, error) {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return nil, errors.New("NACOS_SERVER_ADDR not set")
	}

	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if dataID == "" {
		return nil, errors.New("NACOS_DATA_ID not set")
	}

	namespace := getEnvOrDefault("NACOS_NAMESPACE", "public")
	group := getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")
	username := strings.TrimSpace(os.Getenv("NACOS_USERNAME"))
	password := strings.TrimSpace(os.Getenv("NACOS_PASSWORD"))

	timeoutMS := 5000
	if timeoutStr := strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS")); timeoutStr != "" {
		if t, err := strconv.Atoi(timeoutStr); err == nil && t > 0 {
			timeoutMS = t
		}
	}

	// 服务器地址支持多个，逗号分隔
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{
			IpAddr: parts[0],
			Port:   port,
		})
	}
	if len(serverConfigs) == 0 {
		return nil, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         namespace,
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if username != "" && password != "" {
		clientConfig.Username = username
		clientConfig.Password = password
	}

	configClient, err := clients.NewConfigClient(
		vo.NacosClientParam{
			ClientConfig:  &clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}

	content, err := configClient.GetConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", dataID, group)
	}

	var cfg Config
	switch filepath.Ext(dataID) {
	case ".json":
		if err := json.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config from nacos: %w", err)
		}
	default:
		// 默认尝试 YAML，如果失败再尝试 JSON
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			if err2 := json.Unmarshal([]byte(content), &cfg); err2 != nil {
				return nil, fmt.Errorf("failed to parse config from nacos (tried YAML and JSON): yaml_err=%v, json_err=%v", err, err2)
			}
		}
	}

	return &cfg, nil
}

// globalConfig 全局配置实例
var globalConfig *Config

// Set 设置全局配置
func Set(cfg *Config) {
	globalConfig = cfg
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}
