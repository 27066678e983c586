package logger

import "strings"

// Level is the severity threshold of a logger. Messages below it are
// dropped.
type Level uint32

// Level constants, from the most verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

type levelNames struct {
	tag  string
	name string
}

// levels is indexed by Level. tag is printed in log lines, name is what
// --debuglevel is documented to accept.
var levels = [...]levelNames{
	LevelTrace:    {tag: "TRC", name: "trace"},
	LevelDebug:    {tag: "DBG", name: "debug"},
	LevelInfo:     {tag: "INF", name: "info"},
	LevelWarn:     {tag: "WRN", name: "warn"},
	LevelError:    {tag: "ERR", name: "error"},
	LevelCritical: {tag: "CRT", name: "critical"},
	LevelOff:      {tag: "OFF", name: "off"},
}

// LevelFromString parses a level from its name ("debug") or its tag
// ("DBG"), ignoring case. Unknown input yields LevelInfo and false.
func LevelFromString(s string) (l Level, ok bool) {
	s = strings.ToLower(s)
	for level, names := range levels {
		if s == names.name || s == strings.ToLower(names.tag) {
			return Level(level), true
		}
	}
	return LevelInfo, false
}

// LevelNames returns the names LevelFromString accepts, from the most
// verbose level
func LevelNames() []string {
	names := make([]string, len(levels))
	for i, level := range levels {
		names[i] = level.name
	}
	return names
}

// String returns the tag printed in log lines. Levels past LevelOff are
// "OFF" too.
func (l Level) String() string {
	if l >= LevelOff {
		return levels[LevelOff].tag
	}
	return levels[l].tag
}
