package sound

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

// Sounds the controller plays, relative to the sounds directory.
const (
	Enabled       = "enabled.wav"
	PrecheckFail  = "precheck-fail.wav"
	queueTimeout  = 10 * time.Millisecond
	queueCapacity = 4
)

type Player struct {
	dir  string
	log  *zap.Logger
	play chan string

	closeOnce sync.Once
	done      chan struct{}
}

// NewPlayer starts the speaker goroutine. If the speaker can't be opened,
// queued sounds are logged and dropped.
func NewPlayer(dir string, log *zap.Logger) *Player {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Player{
		dir:  dir,
		log:  log,
		play: make(chan string, queueCapacity),
		done: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Play queues a sound by file name. It gives up after a short wait when the
// queue is full.
func (p *Player) Play(name string) {
	select {
	case p.play <- name:
	case <-time.After(queueTimeout):
		p.log.Debug("Sound queue full, dropping", zap.String("sound", name))
	}
}

func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.play)
		<-p.done
	})
}

func (p *Player) loop() {
	defer close(p.done)
	drain := func() {
		for s := range p.play {
			p.log.Debug("Unable to play", zap.String("sound", s))
		}
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("Speaker crashed", zap.Any("panic", r))
			drain()
		}
	}()

	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		p.log.Warn("Failed to open speaker", zap.Error(err))
		drain()
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for name := range p.play {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		path := filepath.Join(p.dir, name)
		f, err := os.Open(path)
		if err != nil {
			p.log.Warn("Failed to open sound", zap.String("path", path), zap.Error(err))
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			p.log.Warn("Failed to decode sound", zap.String("path", path), zap.Error(err))
			f.Close()
			s = nil
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
	if s != nil {
		s.Close()
	}
}
