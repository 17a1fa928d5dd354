package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("catalog", &buf, WARN)

	l.Info("скрыто")
	l.Warn("видно %d", 1)
	l.Error("тоже видно")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [catalog] видно 1")
	assert.Contains(t, out, "[ERROR] [catalog] тоже видно")
}

func TestDefaultLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	prev := current()
	SetDefaultLogger(NewWriterLogger("", &buf, DEBUG))
	defer SetDefaultLogger(prev)

	Debug("отладка")
	Trace("трассировка")
	Info("инфо")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] отладка") {
		t.Errorf("ожидалась отладочная строка, получено %q", out)
	}
	if strings.Contains(out, "трассировка") {
		t.Errorf("TRACE ниже порога, но попал в вывод")
	}
	assert.Contains(t, out, "[INFO] инфо")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestComponentLoggersWriteThroughDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := current()
	SetDefaultLogger(NewWriterLogger("", &buf, INFO))
	defer SetDefaultLogger(prev)

	lm := NewLoggerManager()
	portal := lm.GetLogger("portal")
	assert.Same(t, portal, lm.GetLogger("portal"))

	portal.Debug("скрыто порогом глобального логгера")
	portal.Info("врата построены")
	assert.NotContains(t, buf.String(), "скрыто")
	assert.Contains(t, buf.String(), "[INFO] [portal] врата построены")

	// Порог компонента важнее глобального
	lm.SetLogLevel("portal", DEBUG)
	portal.Debug("совпадение найдено")
	assert.Contains(t, buf.String(), "[DEBUG] [portal] совпадение найдено")

	catalog := lm.GetLogger("catalog")
	catalog.Debug("каталог молчит")
	assert.NotContains(t, buf.String(), "каталог молчит")

	assert.Equal(t, []string{"catalog", "portal"}, lm.ListComponents())
}

func TestManagerConfigure(t *testing.T) {
	var buf bytes.Buffer
	prev := current()
	SetDefaultLogger(NewWriterLogger("", &buf, TRACE))
	defer SetDefaultLogger(prev)

	lm := NewLoggerManager()
	require.NoError(t, lm.Configure(map[string]string{"api": "warn", "eventbus": "error"}))

	level, ok := lm.Level("api")
	require.True(t, ok)
	assert.Equal(t, WARN, level)
	_, ok = lm.Level("portal")
	assert.False(t, ok)

	// Уровень применяется к логгеру, созданному после настройки
	api := lm.GetLogger("api")
	api.Info("запрос обработан")
	api.Warn("медленный запрос")
	if strings.Contains(buf.String(), "запрос обработан") {
		t.Errorf("INFO ниже порога компонента api, но попал в вывод")
	}
	assert.Contains(t, buf.String(), "[WARN] [api] медленный запрос")

	err := lm.Configure(map[string]string{"portal": "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.components.portal")
}

func TestGetComponentLoggerIsShared(t *testing.T) {
	assert.Same(t, GetComponentLogger("storage"), GetComponentLogger("storage"))
	assert.Equal(t, "storage", GetComponentLogger("storage").Component())
}
