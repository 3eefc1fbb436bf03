package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"omnigen/internal/config"
	"omnigen/internal/credential"
	"omnigen/internal/logger"
	"omnigen/internal/redis"
	"omnigen/internal/service/chat"
	"omnigen/internal/service/image"
	"omnigen/internal/service/speech"
	"omnigen/internal/service/videogen"
	"omnigen/internal/upstream"
	"omnigen/internal/video"
)

// app holds the services shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	redis   *redis.Client
	backend *upstream.GeminiBackend

	chat   *chat.Service
	images *image.Service
	speech *speech.Service
	videos *videogen.Service

	// memoryChat is set when transcripts live in process memory and need sweeping.
	memoryChat *chat.MemoryStore
}

// appOptions picks how the video key gate finds a selected key.
type appOptions struct {
	selector func(*app) (credential.Selector, error)
}

func newApp(ctx context.Context, g *globals, opts appOptions) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.debug {
		cfg.BasicConfig.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(cfg.BasicConfig.Debug)

	a := &app{cfg: cfg, logger: log}
	if cfg.Redis.Enabled {
		a.redis, err = redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
	}

	a.backend, err = upstream.NewGeminiBackend(cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create gemini backend: %w", err)
	}
	chatModel, err := upstream.NewChatModel(ctx, cfg, a.backend)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	var store chat.Store
	if a.redis != nil {
		store = chat.NewRedisStore(a.redis, cfg.SessionTTL())
	} else {
		a.memoryChat = chat.NewMemoryStore(cfg.SessionTTL())
		store = a.memoryChat
	}
	a.chat = chat.NewService(chatModel, store, log.Named("chat"))
	a.images = image.NewService(a.backend, log.Named("image"))
	a.speech = speech.NewService(a.backend, log.Named("speech"))

	gateOpts := []credential.Option{
		credential.WithConfirmation(cfg.Credentials.ConfirmSelection),
		credential.WithLogger(log.Named("credential")),
	}
	if opts.selector != nil {
		sel, err := opts.selector(a)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create key selector: %w", err)
		}
		gateOpts = append(gateOpts, credential.WithSelector(sel))
	}
	gate := credential.NewGate(cfg.Gemini.APIKey, gateOpts...)
	poller := video.NewPoller(cfg.PollInterval(),
		video.WithTimeout(cfg.PollTimeout()),
		video.WithStatusRetries(cfg.Video.StatusRetries),
		video.WithLogger(log.Named("poller")))
	a.videos = videogen.NewService(a.backend, gate, poller, video.NewFetcher(nil), log.Named("video"))
	return a, nil
}

// keyCipher seals stored keys with the configured secret, or with a
// process-local key when none is configured.
func (a *app) keyCipher() (*credential.Cipher, error) {
	if a.cfg.Credentials.EncryptionKey == "" {
		a.logger.Warn("no keystore secret configured, selected keys will not survive a restart")
		return credential.NewEphemeralCipher()
	}
	return credential.NewCipher(a.cfg.Credentials.EncryptionKey)
}

func (a *app) keyStore() credential.KeyStore {
	if a.redis != nil {
		return credential.NewRedisStore(a.redis, "video")
	}
	return credential.NewMemoryStore()
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// writeFile stores generated media at path, or on w when path is "-".
func writeFile(w io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
