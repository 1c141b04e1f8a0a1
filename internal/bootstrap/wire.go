package bootstrap

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"calmly/internal/audio"
	"calmly/internal/config"
	"calmly/internal/domain"
	"calmly/internal/logging"
	"calmly/internal/ports"
	"calmly/internal/providers/hume"
	"calmly/internal/reply"
	"calmly/internal/speech"
	"calmly/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Speech     *speech.Queue
	Replies    *reply.Handler
	Config     config.Config
	Log        zerolog.Logger
}

// Build loads configuration and wires all backend dependencies. Logs go to
// logOut, or stderr when nil.
func Build(ctx context.Context, eventSink ports.EventSink, logOut io.Writer) (Services, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, eventSink, logOut)
}

// BuildWith wires all backend dependencies from an already loaded config.
func BuildWith(cfg config.Config, eventSink ports.EventSink, logOut io.Writer) (Services, error) {
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, logOut)
	if err != nil {
		return Services{}, err
	}

	queue := speech.NewQueue(
		speech.NewCommandSpeaker(cfg.Speech.Command, cfg.Speech.Args...),
		cfg.Speech.QueueSize,
		log,
	)
	queue.OnError = func(_ string, err error) {
		eventSink.SessionError(domain.ErrorCodeSpeech, err.Error())
	}

	replies := reply.NewHandler(queue, log)
	replies.OnDecodeError = func(err error) {
		eventSink.SessionError(domain.ErrorCodeDecode, err.Error())
	}

	capture := audio.PipelineFactory{
		Capture: audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		Config: ports.AudioConfig{
			SampleRate:   cfg.Audio.SampleRate,
			Channels:     domain.WireChannels,
			InputFormat:  cfg.Audio.InputFormat,
			InputDevice:  cfg.Audio.InputDevice,
			FrameSamples: cfg.Audio.FrameSamples,
			GrantTimeout: cfg.Audio.MicTimeout,
		},
		Log: log,
	}

	voice := hume.NewProvider(hume.Config{
		APIKey:         cfg.Hume.APIKey,
		ConfigID:       cfg.Hume.ConfigID,
		StreamURL:      cfg.Hume.StreamURL,
		ConnectTimeout: cfg.Hume.ConnectTimeout,
	}, log)

	controller := usecase.NewSessionController(voice, capture, replies, eventSink, log)

	return Services{
		Controller: controller,
		Speech:     queue,
		Replies:    replies,
		Config:     cfg,
		Log:        log,
	}, nil
}

// Close stops any active session and the speech worker.
func (s Services) Close() error {
	if s.Controller != nil {
		_ = s.Controller.Stop()
		s.Controller.Wait()
	}
	if s.Speech != nil {
		return s.Speech.Close()
	}
	return nil
}
