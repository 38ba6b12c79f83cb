package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerDevEnablesDebug(t *testing.T) {
	if NewLogger("dev").GetLevel() != zerolog.DebugLevel {
		t.Fatal("в dev ожидали уровень debug")
	}
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	if NewLogger("production").GetLevel() != zerolog.InfoLevel {
		t.Fatal("вне dev ожидали уровень info")
	}
}
