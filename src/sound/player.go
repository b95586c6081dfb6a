package sound

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Player plays decoded buffers on the default audio output. The output
// context is opened on first use so hosts without audio can still start.
type Player struct {
	log zerolog.Logger

	once    sync.Once
	ctx     *oto.Context
	initErr error

	mu      sync.Mutex
	playing int
}

func NewPlayer() *Player {
	return &Player{log: log.With().Str("module", "Sound").Logger()}
}

func (p *Player) context() (*oto.Context, error) {
	p.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: ChannelCount,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.initErr = fmt.Errorf("could not open audio output: %w", err)
			return
		}
		<-ready
		p.ctx = ctx
	})
	return p.ctx, p.initErr
}

// Play starts playback of buf and returns without waiting for it to finish.
// Overlapping calls mix on the output.
func (p *Player) Play(buf *Buffer) error {
	ctx, err := p.context()
	if err != nil {
		return err
	}

	player := ctx.NewPlayer(bytes.NewReader(buf.Data))
	player.Play()

	p.mu.Lock()
	p.playing++
	p.mu.Unlock()

	go func() {
		for player.IsPlaying() {
			time.Sleep(20 * time.Millisecond)
		}
		if err := player.Close(); err != nil {
			p.log.Debug().Err(err).Str("path", buf.Path).Msg("Failed to close player")
		}
		p.mu.Lock()
		p.playing--
		p.mu.Unlock()
	}()

	p.log.Debug().Str("path", buf.Path).Dur("duration", buf.Duration()).Msg("Playing sound")
	return nil
}

// Active returns the number of sounds currently playing.
func (p *Player) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
