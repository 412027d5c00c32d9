// Package audio renders training cues to localized phrases and speaks them
// through a strictly serialized queue.
package audio

import (
	"fmt"
	"strconv"
)

// Instruction is the kind of spoken cue.
type Instruction int

const (
	InstructionZoneStart Instruction = iota
	InstructionZoneEndWarning
	InstructionZoneCountdown
	InstructionErrorNotification
	InstructionPauseNotification
	InstructionResumeNotification
)

func (i Instruction) String() string {
	switch i {
	case InstructionZoneStart:
		return "ZONE_START"
	case InstructionZoneEndWarning:
		return "ZONE_END_WARNING"
	case InstructionZoneCountdown:
		return "ZONE_COUNTDOWN"
	case InstructionErrorNotification:
		return "ERROR_NOTIFICATION"
	case InstructionPauseNotification:
		return "PAUSE_NOTIFICATION"
	case InstructionResumeNotification:
		return "RESUME_NOTIFICATION"
	}
	return fmt.Sprintf("Instruction(%d)", int(i))
}

// Locale selects the phrase set used for rendering and the speaker voice.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"
)

// ParseLocale returns the locale for s, falling back to Russian.
func ParseLocale(s string) Locale {
	switch Locale(s) {
	case LocaleEN:
		return LocaleEN
	default:
		return LocaleRU
	}
}

// CountdownFrom is the first number spoken by the zone countdown.
const CountdownFrom = 5

// Cue is a request to speak one instruction. Zone numbers are 1-based; zero
// means the cue carries no zone.
type Cue struct {
	Instruction Instruction
	Zone        int
	NextZone    int
	EffortMin   int
	EffortMax   int
	Seconds     int
}

func ZoneStartCue(zone, effortMin, effortMax int) Cue {
	return Cue{Instruction: InstructionZoneStart, Zone: zone, EffortMin: effortMin, EffortMax: effortMax}
}

func ZoneEndWarningCue(zone, next int) Cue {
	return Cue{Instruction: InstructionZoneEndWarning, Zone: zone, NextZone: next}
}

func CountdownCue(seconds int) Cue {
	return Cue{Instruction: InstructionZoneCountdown, Seconds: seconds}
}

func ErrorCue() Cue {
	return Cue{Instruction: InstructionErrorNotification}
}

func PauseCue(zone int) Cue {
	return Cue{Instruction: InstructionPauseNotification, Zone: zone}
}

func ResumeCue(zone int) Cue {
	return Cue{Instruction: InstructionResumeNotification, Zone: zone}
}

type phrasebook struct {
	zoneNames      [5]string
	zoneStart      func(name, effort string) string
	effort         func(min, max int) string
	zoneEndWarning func(name, next string) string
	countdownStart string
	errorText      string
	pauseText      string
	resumeZone     func(name string) string
	resumeText     string
}

var phrasebooks = map[Locale]phrasebook{
	LocaleRU: {
		zoneNames: [5]string{"Синяя", "Зеленая", "Желтая", "Оранжевая", "Красная"},
		zoneStart: func(name, effort string) string {
			return fmt.Sprintf("Сейчас %s зона. Бегите с усилием %s.", name, effort)
		},
		effort: func(min, max int) string {
			if min == max {
				return fmt.Sprintf("%d процентов", min)
			}
			return fmt.Sprintf("%d-%d процентов", min, max)
		},
		zoneEndWarning: func(name, next string) string {
			return fmt.Sprintf("Через 30 секунд завершается %s зона, далее последует %s зона.", name, next)
		},
		countdownStart: "Старт новой зоны!",
		errorText:      "Произошла ошибка. Пожалуйста, проверьте подключение к датчику скорости.",
		pauseText:      "Тренировка приостановлена.",
		resumeZone: func(name string) string {
			return fmt.Sprintf("Продолжаем тренировку. %s зона.", name)
		},
		resumeText: "Тренировка возобновлена.",
	},
	LocaleEN: {
		zoneNames: [5]string{"Blue", "Green", "Yellow", "Orange", "Red"},
		zoneStart: func(name, effort string) string {
			return fmt.Sprintf("%s zone now. Run at %s effort.", name, effort)
		},
		effort: func(min, max int) string {
			if min == max {
				return fmt.Sprintf("%d percent", min)
			}
			return fmt.Sprintf("%d to %d percent", min, max)
		},
		zoneEndWarning: func(name, next string) string {
			return fmt.Sprintf("The %s zone ends in 30 seconds, the %s zone is next.", name, next)
		},
		countdownStart: "Start the new zone!",
		errorText:      "An error occurred. Please check the speed sensor connection.",
		pauseText:      "Training paused.",
		resumeZone: func(name string) string {
			return fmt.Sprintf("Resuming training. %s zone.", name)
		},
		resumeText: "Training resumed.",
	},
}

func (p phrasebook) zoneName(zone int) (string, bool) {
	if zone < 1 || zone > len(p.zoneNames) {
		return "", false
	}
	return p.zoneNames[zone-1], true
}

// Render returns the phrase for cue in locale. It returns false when the cue is
// missing data its template needs, in which case nothing should be spoken.
func Render(cue Cue, locale Locale) (string, bool) {
	book, ok := phrasebooks[locale]
	if !ok {
		book = phrasebooks[LocaleRU]
	}

	switch cue.Instruction {
	case InstructionZoneStart:
		name, ok := book.zoneName(cue.Zone)
		if !ok {
			return "", false
		}
		return book.zoneStart(name, book.effort(cue.EffortMin, cue.EffortMax)), true
	case InstructionZoneEndWarning:
		name, ok := book.zoneName(cue.Zone)
		next, nextOK := book.zoneName(cue.NextZone)
		if !ok || !nextOK {
			return "", false
		}
		return book.zoneEndWarning(name, next), true
	case InstructionZoneCountdown:
		if cue.Seconds < 0 || cue.Seconds > CountdownFrom {
			return "", false
		}
		if cue.Seconds == 0 {
			return book.countdownStart, true
		}
		return strconv.Itoa(cue.Seconds), true
	case InstructionErrorNotification:
		return book.errorText, true
	case InstructionPauseNotification:
		return book.pauseText, true
	case InstructionResumeNotification:
		if name, ok := book.zoneName(cue.Zone); ok {
			return book.resumeZone(name), true
		}
		return book.resumeText, true
	}
	return "", false
}
