package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hookrelay/hookrelay/config/modules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig(t *testing.T) {
	tests := []struct {
		desc                string
		cfg                 modules.RedisConfig
		expectedValidateErr error
	}{
		{
			desc: "sanity",
			cfg: modules.RedisConfig{
				Host: "127.0.0.1",
				Port: 6379,
			},
			expectedValidateErr: nil,
		},
		{
			desc: "invalid port",
			cfg: modules.RedisConfig{
				Host: "127.0.0.1",
				Port: 65536,
			},
			expectedValidateErr: errors.New("port must be in the range [0, 65535]"),
		},
	}
	for _, test := range tests {
		actualValidateErr := test.cfg.Validate()
		assert.Equal(t, test.expectedValidateErr, actualValidateErr, "expected %v got %v", test.expectedValidateErr, actualValidateErr)
	}
}

func TestLogConfig(t *testing.T) {
	tests := []struct {
		desc                string
		cfg                 modules.LogConfig
		expectedValidateErr error
	}{
		{
			desc:                "sanity",
			cfg:                 modules.LogConfig{Level: modules.LogLevelInfo, Format: modules.LogFormatText},
			expectedValidateErr: nil,
		},
		{
			desc:                "invalid level",
			cfg:                 modules.LogConfig{Level: "", Format: modules.LogFormatText},
			expectedValidateErr: errors.New("invalid level: "),
		},
		{
			desc:                "invalid level: x",
			cfg:                 modules.LogConfig{Level: "x", Format: modules.LogFormatText},
			expectedValidateErr: errors.New("invalid level: x"),
		},
		{
			desc:                "invalid format: x",
			cfg:                 modules.LogConfig{Level: "info", Format: "x"},
			expectedValidateErr: errors.New("invalid format: x"),
		},
	}
	for _, test := range tests {
		actualValidateErr := test.cfg.Validate()
		assert.Equal(t, test.expectedValidateErr, actualValidateErr, "expected %v got %v", test.expectedValidateErr, actualValidateErr)
	}
}

func TestProxyConfig(t *testing.T) {
	tests := []struct {
		desc                string
		cfg                 modules.ProxyConfig
		expectedValidateErr error
	}{
		{
			desc:                "sanity",
			cfg:                 modules.ProxyConfig{Listen: "0.0.0.0:9600", RateLimit: 60},
			expectedValidateErr: nil,
		},
		{
			desc:                "max_request_body_size cannot be negative value",
			cfg:                 modules.ProxyConfig{MaxRequestBodySize: -1},
			expectedValidateErr: errors.New("max_request_body_size cannot be negative value"),
		},
		{
			desc:                "timeout_read cannot be negative value",
			cfg:                 modules.ProxyConfig{TimeoutRead: -1},
			expectedValidateErr: errors.New("timeout_read cannot be negative value"),
		},
		{
			desc:                "timeout_write cannot be negative value",
			cfg:                 modules.ProxyConfig{TimeoutWrite: -1},
			expectedValidateErr: errors.New("timeout_write cannot be negative value"),
		},
		{
			desc:                "rate_limit cannot be negative value",
			cfg:                 modules.ProxyConfig{RateLimit: -1},
			expectedValidateErr: errors.New("rate_limit cannot be negative value"),
		},
		{
			desc:                "tls requires both cert and key",
			cfg:                 modules.ProxyConfig{TLS: modules.TLS{Cert: "cert.pem"}},
			expectedValidateErr: errors.New("tls requires both cert and key"),
		},
	}
	for _, test := range tests {
		actualValidateErr := test.cfg.Validate()
		assert.Equal(t, test.expectedValidateErr, actualValidateErr, "expected %v got %v", test.expectedValidateErr, actualValidateErr)
	}
}

func TestQueueAndStoreConfig(t *testing.T) {
	assert.NoError(t, modules.QueueConfig{Type: modules.QueueTypeRedis}.Validate())
	assert.NoError(t, modules.QueueConfig{Type: modules.QueueTypeMemory}.Validate())
	assert.Equal(t, errors.New("invalid queue type: kafka"), modules.QueueConfig{Type: "kafka"}.Validate())

	assert.NoError(t, modules.StoreConfig{Type: modules.StoreTypePostgres}.Validate())
	assert.NoError(t, modules.StoreConfig{Type: modules.StoreTypeMemory}.Validate())
	assert.Equal(t, errors.New("invalid store type: sqlite"), modules.StoreConfig{Type: "sqlite"}.Validate())
}

func TestAccessLogConfig(t *testing.T) {
	assert.NoError(t, modules.AccessLogConfig{}.Validate())
	assert.NoError(t, modules.AccessLogConfig{Enabled: true, Format: modules.LogFormatJson, File: "/dev/stdout"}.Validate())
	assert.Equal(t, errors.New("invalid access_log format: xml"), modules.AccessLogConfig{Enabled: true, Format: "xml", File: "a.log"}.Validate())
	assert.Equal(t, errors.New("access_log.file cannot be empty"), modules.AdminConfig{AccessLog: modules.AccessLogConfig{Enabled: true, Format: modules.LogFormatText}}.Validate())

	cfg := New()
	assert.True(t, cfg.Admin.AccessLog.Enabled)
	assert.Equal(t, modules.LogFormatText, cfg.Proxy.AccessLog.Format)
}

func TestMetricsConfig(t *testing.T) {
	assert.NoError(t, modules.MetricsConfig{Enabled: true, Namespace: "hookrelay"}.Validate())
	assert.NoError(t, modules.MetricsConfig{Enabled: true}.Validate())
	assert.Equal(t, errors.New("invalid namespace: 1abc"), modules.MetricsConfig{Namespace: "1abc"}.Validate())
}

func TestTracingConfig(t *testing.T) {
	cfg := New().Tracing
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.SamplingRate)
	assert.Equal(t, modules.OtlpProtocolHTTP, cfg.Opentelemetry.Protocol)

	cfg.SamplingRate = 1.5
	assert.EqualError(t, cfg.Validate(), "sampling_rate must be in the range [0, 1]")
	cfg.SamplingRate = 0
	cfg.Opentelemetry.Protocol = "thrift"
	assert.EqualError(t, cfg.Validate(), "invalid protocol: thrift")
}

func TestStatusConfig(t *testing.T) {
	tests := []struct {
		desc                string
		cfg                 modules.StatusConfig
		expectedValidateErr error
	}{
		{
			desc:                "sanity",
			cfg:                 modules.StatusConfig{Listen: ""},
			expectedValidateErr: nil,
		},
		{
			desc:                "invalid listen",
			cfg:                 modules.StatusConfig{Listen: "invalid"},
			expectedValidateErr: errors.New("invalid listen 'invalid': address invalid: missing port in address"),
		},
	}
	for _, test := range tests {
		actualValidateErr := test.cfg.Validate()
		assert.Equal(t, test.expectedValidateErr, actualValidateErr, "expected %v got %v", test.expectedValidateErr, actualValidateErr)
	}
	assert.Equal(t, "disabled", modules.StatusConfig{Listen: "off"}.URL())
	assert.Equal(t, "http://127.0.0.1:9602", modules.StatusConfig{Listen: "0.0.0.0:9602"}.URL())
}

func TestRole(t *testing.T) {
	cfg := New()

	cfg.Role = "standalone"
	assert.Nil(t, cfg.Validate())

	cfg.Role = "cp"
	assert.Nil(t, cfg.Validate())

	cfg.Role = "dp_worker"
	assert.Nil(t, cfg.Validate())

	cfg.Role = "dp_proxy"
	assert.Nil(t, cfg.Validate())

	cfg.Role = ""
	assert.Equal(t, errors.New("invalid role: ''"), cfg.Validate())

	cfg.Role = RoleDPWorker
	assert.NoError(t, cfg.PostProcess())
	assert.Equal(t, "", cfg.Admin.Listen)
	assert.Equal(t, "", cfg.Proxy.Listen)
	assert.True(t, cfg.Worker.Enabled)
}

func TestEnvironment(t *testing.T) {
	cfg := New()
	assert.True(t, cfg.IsProduction())

	cfg.Environment = EnvironmentDevelopment
	assert.False(t, cfg.IsProduction())
	assert.NoError(t, cfg.Validate())

	cfg.Environment = "staging"
	assert.Equal(t, errors.New("invalid environment: 'staging'"), cfg.Validate())
}

func TestMemoryStoreRequiresStandalone(t *testing.T) {
	cfg := New()
	cfg.Store.Type = modules.StoreTypeMemory
	assert.NoError(t, cfg.Validate())

	cfg.Role = RoleCP
	assert.Equal(t, errors.New("store type 'memory' requires role 'standalone'"), cfg.Validate())
}

func TestWorkerConfig(t *testing.T) {
	valid := func() modules.WorkerConfig {
		return modules.WorkerConfig{PollInterval: 1000}
	}
	tests := []struct {
		desc        string
		mutate      func(cfg *modules.WorkerConfig)
		validateErr error
	}{
		{
			desc: "sanity",
			mutate: func(cfg *modules.WorkerConfig) {
				cfg.Deliverer.ACL.Deny = []string{"@default", "0.0.0.0", "0.0.0.0/32", "*.example.com", "foo.example.com", "::1/128"}
			},
			validateErr: nil,
		},
		{
			desc:        "poll_interval must be positive",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.PollInterval = 0 },
			validateErr: errors.New("poll_interval must be positive"),
		},
		{
			desc:        "negative retention",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.LogRetentionDays = -1 },
			validateErr: errors.New("log_retention_days cannot be negative"),
		},
		{
			desc:        "negative timeout",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.Deliverer.Timeout = -1 },
			validateErr: errors.New("deliverer.timeout cannot be negative"),
		},
		{
			desc:        "invalid acl rule",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.Deliverer.ACL.Deny = []string{"default"} },
			validateErr: errors.New("invalid rule 'default': requires IP, CIDR, hostname, or pre-configured name"),
		},
		{
			desc:        "wildcard acl rule",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.Deliverer.ACL.Deny = []string{"*"} },
			validateErr: errors.New("invalid rule '*': requires IP, CIDR, hostname, or pre-configured name"),
		},
		{
			desc:        "unicode hostname",
			mutate:      func(cfg *modules.WorkerConfig) { cfg.Deliverer.ACL.Deny = []string{"тест.example.com"} },
			validateErr: errors.New("invalid rule 'тест.example.com': requires IP, CIDR, hostname, or pre-configured name"),
		},
	}
	for _, test := range tests {
		cfg := valid()
		test.mutate(&cfg)
		actual := cfg.Validate()
		assert.Equal(t, test.validateErr, actual, test.desc)
	}
}

func TestWorkerProxyConfig(t *testing.T) {
	tests := []struct {
		desc        string
		cfg         modules.WorkerDeliverer
		validateErr error
	}{
		{
			desc:        "sanity",
			cfg:         modules.WorkerDeliverer{Proxy: "http://example.com:8080"},
			validateErr: nil,
		},
		{
			desc:        "invalid proxy url: missing schema",
			cfg:         modules.WorkerDeliverer{Proxy: "example.com"},
			validateErr: errors.New("invalid proxy url: 'example.com'"),
		},
		{
			desc:        "invalid proxy url: invalid schema",
			cfg:         modules.WorkerDeliverer{Proxy: "ftp://example.com"},
			validateErr: errors.New("proxy schema must be http or https"),
		},
		{
			desc:        "invalid proxy url: missing host",
			cfg:         modules.WorkerDeliverer{Proxy: "http://"},
			validateErr: errors.New("invalid proxy url: 'http://'"),
		},
	}
	for _, test := range tests {
		actual := test.cfg.Validate()
		assert.Equal(t, test.validateErr, actual, "expected %v got %v", test.validateErr, actual)
	}
}

func TestConfig(t *testing.T) {
	cfg := New()
	assert.Nil(t, cfg.Validate())
	assert.Equal(t, int64(30000), cfg.Worker.Deliverer.Timeout)
	assert.Equal(t, []string{"@default"}, cfg.Worker.Deliverer.ACL.Deny)
	assert.Equal(t, int64(30), cfg.Worker.LogRetentionDays)
	assert.Equal(t, 60, cfg.Proxy.RateLimit)
	assert.Equal(t, modules.QueueTypeRedis, cfg.Queue.Type)
	assert.Equal(t, modules.StoreTypePostgres, cfg.Store.Type)

	cfg.Database.Password = "p"
	str := cfg.String()
	assert.NotContains(t, str, `"password":"p"`)

	cfg2 := &Config{}
	err := json.Unmarshal([]byte(str), cfg2)
	assert.Nil(t, err)
	// restore masked passwords
	cfg2.Database.Password = cfg.Database.Password
	cfg2.Redis.Password = cfg.Redis.Password
	assert.Equal(t, cfg, cfg2)
}

func TestInitWithFile(t *testing.T) {
	cfg := New()
	err := Load("./testdata/config-empty.yml", cfg)
	assert.Nil(t, err)
	assert.Nil(t, cfg.Validate())
}

func TestLoader(t *testing.T) {
	cfg := New()
	err := NewLoader(cfg).
		WithFilename("./testdata/config.yml").
		WithEnvPrefix(EnvPrefix).
		WithEnv(map[string]string{
			"HOOKRELAY_LOG_LEVEL":                 "warn",
			"HOOKRELAY_WORKER_DELIVERER_ACL_DENY": "@loopback,10.0.0.1",
			"HOOKRELAY_WORKER_POLL_INTERVAL":      "500",
			"HOOKRELAY_TRACING_SAMPLING_RATE":     "0.25",
		}).
		Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, "shop", cfg.Source)
	assert.Equal(t, modules.LogLevelWarn, cfg.Log.Level, "environment wins over file")
	assert.Equal(t, modules.LogFormatJson, cfg.Log.Format)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.EqualValues(t, 5433, cfg.Database.Port)
	assert.EqualValues(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "hookrelay", cfg.Database.Database, "defaults survive")
	assert.Equal(t, modules.QueueTypeMemory, cfg.Queue.Type)
	assert.Equal(t, modules.StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, int64(500), cfg.Worker.PollInterval)
	assert.Equal(t, int64(5000), cfg.Worker.Deliverer.Timeout)
	assert.Equal(t, []string{"@loopback", "10.0.0.1"}, cfg.Worker.Deliverer.ACL.Deny)
	assert.Equal(t, 120, cfg.Proxy.RateLimit)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SamplingRate)
	assert.Equal(t, map[string]string{"region": "eu-west-1"}, cfg.Tracing.Attributes)
	assert.Equal(t, modules.OtlpProtocolGRPC, cfg.Tracing.Opentelemetry.Protocol)
	assert.Equal(t, "collector.internal:4317", cfg.Tracing.Opentelemetry.Endpoint)
}

func TestLoaderInvalidFile(t *testing.T) {
	cfg := New()
	err := NewLoader(cfg).WithFileContent([]byte("log: [")).Load()
	assert.Error(t, err)

	err = Load("./testdata/missing.yml", New())
	assert.Error(t, err)
}
