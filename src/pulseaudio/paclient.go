package pulseaudio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/the-jonsey/pulseaudio"
)

type TargetType string

const (
	OutputDevice   TargetType = "OutputDevice"
	InputDevice    TargetType = "InputDevice"
	PlaybackStream TargetType = "PlaybackStream"
	RecordStream   TargetType = "RecordStream"
)

// DefaultTarget selects the current default sink or source.
const DefaultTarget = "Default"

var ErrTargetNotFound = errors.New("audio target not found")

// ParseTargetType resolves a target type name case-insensitively.
func ParseTargetType(name string) (TargetType, error) {
	for _, t := range []TargetType{OutputDevice, InputDevice, PlaybackStream, RecordStream} {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown audio target type %q", name)
}

type Stream struct {
	name     string
	fullName string
	paStream interface{}
}

type AudioSource struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type TargetType `json:"type"`
}

// PAClient controls PulseAudio volumes and defaults. The server connection is
// opened on first use and dropped after a failed request so the next call reconnects.
type PAClient struct {
	log     zerolog.Logger
	mu      sync.Mutex
	context *pulseaudio.Client
}

func NewPAClient() *PAClient {
	return &PAClient{
		log: log.With().Str("module", "PulseAudio").Logger(),
	}
}

func (client *PAClient) connect() (*pulseaudio.Client, error) {
	if client.context != nil {
		return client.context, nil
	}
	context, err := pulseaudio.NewClient()
	if err != nil {
		return nil, fmt.Errorf("could not connect to PulseAudio: %w", err)
	}
	client.context = context
	return context, nil
}

func (client *PAClient) reset() {
	if client.context != nil {
		client.context.Close()
		client.context = nil
	}
}

func (client *PAClient) Close() {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.reset()
}

// GetAudioSources returns all devices and streams for display.
func (client *PAClient) GetAudioSources() ([]AudioSource, error) {
	client.mu.Lock()
	defer client.mu.Unlock()

	sources := []AudioSource{}
	for _, t := range []TargetType{OutputDevice, InputDevice, PlaybackStream, RecordStream} {
		streams, err := client.streams(t)
		if err != nil {
			return nil, err
		}
		sources = append(sources, lo.Map(streams, func(stream Stream, i int) AudioSource {
			return AudioSource{ID: stream.fullName, Name: stream.name, Type: t}
		})...)
	}
	return sources, nil
}

func (client *PAClient) List() {
	sources, err := client.GetAudioSources()
	if err != nil {
		client.log.Error().Err(err).Msg("Could not list audio targets")
		return
	}
	lo.ForEach(sources, func(source AudioSource, i int) {
		client.log.Info().Msgf("Found %s:\t%s", source.Type, source.Name)
	})
}

func (client *PAClient) streams(targetType TargetType) ([]Stream, error) {
	context, err := client.connect()
	if err != nil {
		return nil, err
	}
	var streams []Stream
	switch targetType {
	case OutputDevice:
		sinks, err := context.Sinks()
		if err != nil {
			client.reset()
			return nil, fmt.Errorf("could not list sinks: %w", err)
		}
		streams = lo.Map(sinks, func(sink pulseaudio.Sink, i int) Stream {
			return Stream{name: sink.Description, fullName: sink.Name, paStream: sink}
		})
	case InputDevice:
		sources, err := context.Sources()
		if err != nil {
			client.reset()
			return nil, fmt.Errorf("could not list sources: %w", err)
		}
		streams = lo.Map(sources, func(source pulseaudio.Source, i int) Stream {
			return Stream{name: source.Description, fullName: source.Name, paStream: source}
		})
	case PlaybackStream:
		sinkInputs, err := context.SinkInputs()
		if err != nil {
			client.reset()
			return nil, fmt.Errorf("could not list playback streams: %w", err)
		}
		streams = lo.Map(sinkInputs, func(sinkInput pulseaudio.SinkInput, i int) Stream {
			return Stream{
				name:     streamName(sinkInput.PropList),
				fullName: sinkInput.PropList["module-stream-restore.id"],
				paStream: sinkInput,
			}
		})
	case RecordStream:
		sourceOutputs, err := context.SourceOutputs()
		if err != nil {
			client.reset()
			return nil, fmt.Errorf("could not list record streams: %w", err)
		}
		streams = lo.Map(sourceOutputs, func(sourceOutput pulseaudio.SourceOutput, i int) Stream {
			return Stream{
				name:     streamName(sourceOutput.PropList),
				fullName: sourceOutput.PropList["module-stream-restore.id"],
				paStream: sourceOutput,
			}
		})
	default:
		return nil, fmt.Errorf("unknown audio target type %q", targetType)
	}
	return streams, nil
}

func streamName(props map[string]string) string {
	if name := props["application.name"]; name != "" {
		return name
	}
	return props["media.name"]
}

// matchStreams selects streams whose display or full name equals name, ignoring case.
func matchStreams(streams []Stream, name string) []Stream {
	return lo.Filter(streams, func(stream Stream, i int) bool {
		return strings.EqualFold(stream.name, name) || strings.EqualFold(stream.fullName, name)
	})
}

func (client *PAClient) defaultName(targetType TargetType) (string, error) {
	switch targetType {
	case OutputDevice:
		sink, err := client.context.GetDefaultSink()
		if err != nil {
			return "", fmt.Errorf("could not get default sink: %w", err)
		}
		return sink.Name, nil
	case InputDevice:
		source, err := client.context.GetDefaultSource()
		if err != nil {
			return "", fmt.Errorf("could not get default source: %w", err)
		}
		return source.Name, nil
	}
	return "", fmt.Errorf("%s has no default", targetType)
}

// SetVolume sets every target matching name to volume, a fraction in 0..1.
func (client *PAClient) SetVolume(targetType TargetType, name string, volume float32) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	streams, err := client.streams(targetType)
	if err != nil {
		return err
	}
	if strings.EqualFold(name, DefaultTarget) && (targetType == OutputDevice || targetType == InputDevice) {
		if name, err = client.defaultName(targetType); err != nil {
			return err
		}
	}
	matched := matchStreams(streams, name)
	if len(matched) == 0 {
		return fmt.Errorf("%w: %s %q", ErrTargetNotFound, targetType, name)
	}

	lo.ForEach(matched, func(stream Stream, index int) {
		switch st := stream.paStream.(type) {
		case pulseaudio.Sink:
			st.SetVolume(volume)
		case pulseaudio.SinkInput:
			st.SetVolume(volume)
		case pulseaudio.Source:
			st.SetVolume(volume)
		case pulseaudio.SourceOutput:
			st.SetVolume(volume)
		}
		client.log.Debug().Msgf("Set %s volume to %f", stream.name, volume)
	})
	return nil
}

// SetDefaultOutput makes the output device matching name the default sink.
func (client *PAClient) SetDefaultOutput(name string) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	outputs, err := client.streams(OutputDevice)
	if err != nil {
		return err
	}
	matched := matchStreams(outputs, name)
	if len(matched) == 0 {
		return fmt.Errorf("%w: %s %q", ErrTargetNotFound, OutputDevice, name)
	}
	client.log.Debug().Msgf("Setting %s as default output", matched[0].name)
	if err := client.context.SetDefaultSink(matched[0].fullName); err != nil {
		client.reset()
		return fmt.Errorf("could not set default sink: %w", err)
	}
	return nil
}
