// Package audio captures microphone input through PortAudio and spools it
// into a temporary WAV file for transcription.
package audio

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	. "github.com/vowrite/vowrite/internal/logging"
	"github.com/vowrite/vowrite/internal/paths"
)

const (
	sampleRate      = 16000
	numChannels     = 1
	framesPerBuffer = 1024
	bitDepth        = 16
)

// Recorder drives a single capture session at a time. Start and Stop pair up;
// Cancel tears down without producing a file.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	startedAt time.Time
	frames    []int16
	level     float64

	stream *portaudio.Stream
	in     []int16
	done   chan struct{}
	loopWG sync.WaitGroup
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start opens the default input device and begins buffering samples.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return fmt.Errorf("already recording")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	r.in = make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(numChannels, 0, float64(sampleRate), len(r.in), r.in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	r.stream = stream
	r.frames = r.frames[:0]
	r.level = 0
	r.recording = true
	r.startedAt = time.Now()
	r.done = make(chan struct{})

	r.loopWG.Add(1)
	go r.captureLoop()

	L_info("audio: recording started", "rate", sampleRate, "channels", numChannels)
	return nil
}

func (r *Recorder) captureLoop() {
	defer r.loopWG.Done()
	for {
		select {
		case <-r.done:
			return
		default:
		}
		if err := r.stream.Read(); err != nil {
			L_debug("audio: stream read error", "error", err)
			continue
		}
		r.mu.Lock()
		r.frames = append(r.frames, r.in...)
		r.level = meterLevel(rms(r.in))
		r.mu.Unlock()
	}
}

// Level reports the current input meter value in [0, 1].
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return 0
	}
	return r.level
}

// Recording reports whether a capture session is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Stop ends the capture and writes the buffered samples to a temporary WAV
// file. It returns the file path and the recording duration in seconds.
func (r *Recorder) Stop() (string, float64, error) {
	frames, duration, err := r.teardown()
	if err != nil {
		return "", 0, err
	}
	if len(frames) == 0 {
		return "", 0, fmt.Errorf("no audio captured")
	}

	path := filepath.Join(paths.RecordingDir(), "vowrite_"+uuid.NewString()+".wav")
	if err := writeWav(path, frames); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write recording: %w", err)
	}

	L_info("audio: recording stopped", "path", path, "seconds", fmt.Sprintf("%.1f", duration), "samples", len(frames))
	return path, duration, nil
}

// Cancel ends the capture and discards everything buffered so far.
func (r *Recorder) Cancel() error {
	_, _, err := r.teardown()
	if err != nil {
		return err
	}
	L_info("audio: recording cancelled")
	return nil
}

func (r *Recorder) teardown() ([]int16, float64, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, 0, fmt.Errorf("not recording")
	}
	r.recording = false
	close(r.done)
	duration := time.Since(r.startedAt).Seconds()
	r.mu.Unlock()

	r.loopWG.Wait()

	_ = r.stream.Stop()
	_ = r.stream.Close()
	_ = portaudio.Terminate()
	r.stream = nil

	r.mu.Lock()
	frames := r.frames
	r.frames = nil
	r.level = 0
	r.mu.Unlock()

	return frames, duration, nil
}

func writeWav(path string, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChannels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// meterLevel maps a raw RMS value to the displayed meter. Anything above the
// -45 dB floor reads as a random value between 0.6 and 1.0, which makes the
// meter pulse visibly while speech is present instead of tracking amplitude.
func meterLevel(rms float64) float64 {
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	if db > -45 {
		return 0.6 + rand.Float64()*0.4
	}
	return 0
}
