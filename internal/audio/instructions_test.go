package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Russian(t *testing.T) {
	tests := []struct {
		name string
		cue  Cue
		want string
	}{
		{"zone start single effort", ZoneStartCue(1, 15, 15), "Сейчас Синяя зона. Бегите с усилием 15 процентов."},
		{"zone start range", ZoneStartCue(3, 26, 50), "Сейчас Желтая зона. Бегите с усилием 26-50 процентов."},
		{"end warning", ZoneEndWarningCue(1, 2), "Через 30 секунд завершается Синяя зона, далее последует Зеленая зона."},
		{"countdown", CountdownCue(3), "3"},
		{"countdown start", CountdownCue(0), "Старт новой зоны!"},
		{"error", ErrorCue(), "Произошла ошибка. Пожалуйста, проверьте подключение к датчику скорости."},
		{"pause", PauseCue(2), "Тренировка приостановлена."},
		{"resume with zone", ResumeCue(5), "Продолжаем тренировку. Красная зона."},
		{"resume without zone", ResumeCue(0), "Тренировка возобновлена."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Render(tt.cue, LocaleRU)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_English(t *testing.T) {
	got, ok := Render(ZoneStartCue(2, 16, 25), LocaleEN)
	assert.True(t, ok)
	assert.Equal(t, "Green zone now. Run at 16 to 25 percent effort.", got)
}

func TestRender_InvalidCues(t *testing.T) {
	for _, cue := range []Cue{
		ZoneStartCue(0, 15, 15),
		ZoneStartCue(6, 15, 15),
		ZoneEndWarningCue(5, 0),
		CountdownCue(6),
		CountdownCue(-1),
		{Instruction: Instruction(42)},
	} {
		_, ok := Render(cue, LocaleRU)
		assert.False(t, ok, "cue %+v", cue)
	}
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, LocaleEN, ParseLocale("en"))
	assert.Equal(t, LocaleRU, ParseLocale("ru"))
	assert.Equal(t, LocaleRU, ParseLocale("de"))
}
