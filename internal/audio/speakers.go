package audio

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
)

// LogSpeaker writes utterances to the log instead of producing sound.
type LogSpeaker struct {
	logger *log.Logger
}

func NewLogSpeaker(logger *log.Logger) *LogSpeaker {
	if logger == nil {
		panic("LogSpeaker: logger cannot be nil")
	}
	return &LogSpeaker{logger: logger}
}

func (s *LogSpeaker) Speak(ctx context.Context, text string, locale Locale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Printf("Speech [%s]: %s", locale, text)
	return nil
}

// CommandSpeaker speaks through an espeak-compatible command line synthesizer.
// When the command is not installed it degrades to a silent no-op.
type CommandSpeaker struct {
	path   string
	rate   int
	voices map[Locale]string
	logger *log.Logger
}

// NewCommandSpeaker resolves command on PATH. rate is in words per minute.
func NewCommandSpeaker(command string, rate int, logger *log.Logger) *CommandSpeaker {
	if logger == nil {
		panic("CommandSpeaker: logger cannot be nil")
	}
	s := &CommandSpeaker{
		rate:   rate,
		voices: map[Locale]string{LocaleRU: "ru", LocaleEN: "en"},
		logger: logger,
	}
	path, err := exec.LookPath(command)
	if err != nil {
		logger.Printf("CommandSpeaker: %q not available, speech disabled: %v", command, err)
		return s
	}
	s.path = path
	logger.Printf("CommandSpeaker: using %s", path)
	return s
}

// Available reports whether a synthesizer binary was found.
func (s *CommandSpeaker) Available() bool {
	return s.path != ""
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string, locale Locale) error {
	if s.path == "" {
		return nil
	}
	voice, ok := s.voices[locale]
	if !ok {
		voice = s.voices[LocaleRU]
	}
	args := []string{"-v", voice}
	if s.rate > 0 {
		args = append(args, "-s", strconv.Itoa(s.rate))
	}
	args = append(args, text)
	if err := exec.CommandContext(ctx, s.path, args...).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", s.path, err)
	}
	return nil
}
