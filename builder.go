package tokengate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tokengate/internal/audit"
	"github.com/MrEthical07/tokengate/internal/flows"
	"github.com/MrEthical07/tokengate/jwt"
	"github.com/MrEthical07/tokengate/revocation"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  revocation.Store

	directory UserDirectory
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRevocationStore sets the store that records logged-out tokens. It takes
// precedence over WithRedis.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs revocation with a RedisStore on client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	store := b.store
	if store == nil && b.redis != nil {
		store = revocation.NewRedisStore(b.redis, "tg", cfg.Revocation.Grace).WithClock(cfg.Now)
	}
	if store == nil {
		return nil, errors.New("revocation store required")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("tokengate")

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		jwtManager: jm,
		store:      store,
		directory:  b.directory,
		metrics:    NewMetrics(cfg.Metrics),
		log:        log,
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		CloseTimeout: cfg.Audit.CloseTimeout,
		Logger:       log.Named("audit"),
	}, sink)

	engine.flows = flows.New(engine.buildFlowDeps())

	if pruner, ok := store.(revocation.Pruner); ok && cfg.Revocation.PruneInterval > 0 {
		engine.janitor = revocation.StartJanitor(pruner, revocation.JanitorConfig{
			Interval: cfg.Revocation.PruneInterval,
			Now:      cfg.Now,
			Logger:   log.Named("janitor"),
		})
	}

	b.built = true

	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	deps := flows.Deps{
		Validate: flows.ValidateDeps{
			Decode:        e.jwtManager.Decode,
			Revocations:   e.store,
			LookupTimeout: e.config.Revocation.LookupTimeout,
		},
		Logout: flows.LogoutDeps{
			PeekExpiry:   e.jwtManager.PeekExpiry,
			Store:        e.store,
			Now:          e.config.Now,
			WriteTimeout: e.config.Revocation.WriteTimeout,
			MaxTTL:       e.config.JWT.TTL,
			Leeway:       e.config.JWT.Leeway,
			Grace:        e.config.Revocation.Grace,
		},
	}

	if dir := e.directory; dir != nil {
		deps.Login = flows.LoginDeps{
			FindUser: func(ctx context.Context, email string) (flows.LoginUserRecord, error) {
				u, err := dir.FindByEmail(ctx, email)
				if err != nil {
					return flows.LoginUserRecord{}, err
				}
				return flows.LoginUserRecord(u), nil
			},
			VerifyCredential: func(ctx context.Context, u flows.LoginUserRecord, proof string) (bool, error) {
				return dir.VerifyCredential(ctx, UserRecord(u), proof)
			},
			UserNotFound: ErrUserNotFound,
			Encode:       e.jwtManager.Encode,
		}
	}

	return deps
}
