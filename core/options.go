package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	statusStore     StatusStore
	directory       ActorDirectory
	eventStore      EventStore
	itemStore       ItemStore
	signer          RequestSigner
	fanout          DeliveryFanout
	retryScheduler  RetryScheduler
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithStatusStore(store StatusStore) Option {
	return func(b *serviceBuilder) {
		b.statusStore = store
	}
}

func WithActorDirectory(directory ActorDirectory) Option {
	return func(b *serviceBuilder) {
		b.directory = directory
	}
}

func WithEventStore(store EventStore) Option {
	return func(b *serviceBuilder) {
		b.eventStore = store
	}
}

func WithItemStore(store ItemStore) Option {
	return func(b *serviceBuilder) {
		b.itemStore = store
	}
}

func WithSigner(signer RequestSigner) Option {
	return func(b *serviceBuilder) {
		b.signer = signer
	}
}

func WithDeliveryFanout(fanout DeliveryFanout) Option {
	return func(b *serviceBuilder) {
		b.fanout = fanout
	}
}

func WithRetryScheduler(scheduler RetryScheduler) Option {
	return func(b *serviceBuilder) {
		b.retryScheduler = scheduler
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("federation", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		signer:          &HTTPSignatureSigner{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return federationErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	delivery := map[string]any{}
	if includeZero || cfg.Delivery.PoolSize != 0 {
		delivery["pool_size"] = cfg.Delivery.PoolSize
	}
	if includeZero || cfg.Delivery.MaxAttempts != 0 {
		delivery["max_attempts"] = cfg.Delivery.MaxAttempts
	}
	if includeZero || cfg.Delivery.InitialBackoff != 0 {
		delivery["initial_backoff"] = cfg.Delivery.InitialBackoff
	}
	if includeZero || cfg.Delivery.MaxBackoff != 0 {
		delivery["max_backoff"] = cfg.Delivery.MaxBackoff
	}
	if includeZero || cfg.Delivery.ItemTimeout != 0 {
		delivery["item_timeout"] = cfg.Delivery.ItemTimeout
	}
	if includeZero || strings.TrimSpace(cfg.Delivery.UserAgent) != "" {
		delivery["user_agent"] = cfg.Delivery.UserAgent
	}
	if includeZero || cfg.Delivery.PageSize != 0 {
		delivery["page_size"] = cfg.Delivery.PageSize
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}
	return layer
}
