package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	sqlite3 "modernc.org/sqlite"
)

// The search engine relies on the SQL REGEXP operator, which SQLite leaves
// to the application to supply. regexp(pattern, text) is registered once per
// process on the driver, backed by the Go regexp package with a small
// compile cache.

var regexpCache = struct {
	sync.RWMutex
	compiled map[string]*regexp.Regexp
}{compiled: make(map[string]*regexp.Regexp)}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	regexpCache.RLock()
	re, ok := regexpCache.compiled[pattern]
	regexpCache.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexpCache.Lock()
	regexpCache.compiled[pattern] = re
	regexpCache.Unlock()
	return re, nil
}

func init() {
	sqlite3.MustRegisterDeterministicScalarFunction("regexp", 2,
		func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, ok := asText(args[0])
			if !ok {
				return nil, fmt.Errorf("regexp: pattern must be text")
			}
			text, ok := asText(args[1])
			if !ok {
				// NULL operand: no match, mirroring SQL comparison semantics.
				return int64(0), nil
			}
			re, err := compilePattern(pattern)
			if err != nil {
				return nil, fmt.Errorf("regexp: %w", err)
			}
			if re.MatchString(text) {
				return int64(1), nil
			}
			return int64(0), nil
		})
}

// asText extracts a string from a driver value.
func asText(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
