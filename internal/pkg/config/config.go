package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var GlobalConfig *Config

// Config 全局配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Core         CoreConfig         `mapstructure:"core"`
	Notification NotificationConfig `mapstructure:"notification"`
	DB           interface{}        // 数据库连接,运行时注入
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // SQL日志级别: silent/error/warn/info
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWT       JWTConfig        `mapstructure:"jwt"`
	Operators []OperatorConfig `mapstructure:"operators"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	AccessTokenExpire  int    `mapstructure:"access_token_expire"`  // 秒
	RefreshTokenExpire int    `mapstructure:"refresh_token_expire"` // 秒
}

// OperatorConfig 操作员账号, 密码为bcrypt哈希
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	DisplayName  string `mapstructure:"display_name"`
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, console
	Output     string `mapstructure:"output"` // stdout, file
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// CoreConfig Core模块配置
type CoreConfig struct {
	ScanInterval string          `mapstructure:"scan_interval"` // 发布单扫描间隔
	Release      ReleaseConfig   `mapstructure:"release"`
	Rollback     RollbackConfig  `mapstructure:"rollback"`
	Readiness    ReadinessConfig `mapstructure:"readiness"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler"`
	Health       HealthConfig    `mapstructure:"health"`
}

// HealthConfig 健康监控配置
type HealthConfig struct {
	Mode        string `mapstructure:"mode"`         // static/http
	EndpointFmt string `mapstructure:"endpoint_fmt"` // 健康端点模板, 如 http://%s.%s.svc/healthz
	MetricsFmt  string `mapstructure:"metrics_fmt"`  // 指标接口模板, 如 http://metrics.internal/api/v1/%s/%s/summary
}

// ReleaseConfig 发布执行配置
type ReleaseConfig struct {
	PollInterval     string `mapstructure:"poll_interval"`     // 监控阶段健康轮询间隔
	MinuteDuration   string `mapstructure:"minute_duration"`   // 阶段时长中 1 分钟的真实时长(测试可调小)
	RollingInstances int    `mapstructure:"rolling_instances"` // rolling 策略实例数
	StrategyFile     string `mapstructure:"strategy_file"`     // 可选: 阶段模板YAML, 覆盖内置模板
}

// PollIntervalDuration 解析轮询间隔, 默认6秒
func (c *ReleaseConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 6 * time.Second
}

// MinuteScale 解析"1分钟"的真实时长, 默认1分钟
func (c *ReleaseConfig) MinuteScale() time.Duration {
	if d, err := time.ParseDuration(c.MinuteDuration); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// Instances rolling 策略实例数, 默认4
func (c *ReleaseConfig) Instances() int {
	if c.RollingInstances > 0 {
		return c.RollingInstances
	}
	return 4
}

// RollbackConfig 回滚执行配置
type RollbackConfig struct {
	StepDuration string `mapstructure:"step_duration"` // 单步执行的时间比例(模拟/联调用, 生产为实际执行)
}

// StepScale 回滚步骤预计时长中 1 秒的真实时长, 默认 1/30 秒(联调加速)
func (c *RollbackConfig) StepScale() time.Duration {
	if d, err := time.ParseDuration(c.StepDuration); err == nil && d > 0 {
		return d
	}
	return time.Second / 30
}

// ReadinessConfig 就绪检查配置
type ReadinessConfig struct {
	CheckTimeout string `mapstructure:"check_timeout"` // 单项检查超时
}

// CheckTimeoutDuration 单项检查超时, 默认30秒
func (c *ReadinessConfig) CheckTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.CheckTimeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	WaiverSweepCron     string `mapstructure:"waiver_sweep_cron"`     // 过期豁免清理
	AssessmentSweepCron string `mapstructure:"assessment_sweep_cron"` // 过期风险评估清理
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`      // 是否启用
	Provider    string `mapstructure:"provider"`     // 通知渠道
	LarkWebhook string `mapstructure:"lark_webhook"` // Lark Webhook
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 读取环境变量
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 设置全局配置
	GlobalConfig = config

	return config, nil
}

// GetDSN 获取数据库DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
