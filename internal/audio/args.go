package audio

import (
	"runtime"
	"strconv"
	"strings"

	"callcopilot/internal/ports"
)

// defaultInput returns the ffmpeg input format and device for goos.
func defaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "default"
	default:
		return "pulse", "default"
	}
}

// captureArgs builds the ffmpeg argument list. Indexes 5 and 7 are the
// input format and device.
func captureArgs(cfg ports.AudioConfig) []string {
	return captureArgsFor(runtime.GOOS, cfg)
}

func captureArgsFor(goos string, cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	format, device := defaultInput(goos)
	if cfg.InputFormat != "" {
		format = cfg.InputFormat
	}
	if cfg.InputDevice != "" {
		device = cfg.InputDevice
	}
	if format == "dshow" && !strings.HasPrefix(device, "audio=") {
		device = "audio=" + device
	}

	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}
