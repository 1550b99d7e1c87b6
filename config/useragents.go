package config

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
)

//go:embed useragents.txt
var defaultUserAgents string

// ErrEmptyUserAgentPool is returned when a pool file holds no user agents.
var ErrEmptyUserAgentPool = errors.New("user agent pool is empty")

// UserAgentPool is an ordered, non-empty list of user-agent strings.
type UserAgentPool []string

// LoadUserAgents reads the pool from cfg.File, or the embedded default
// pool when no file is configured.
func LoadUserAgents(cfg UserAgentConfig) (UserAgentPool, error) {
	if cfg.File == "" {
		return ParseUserAgents(strings.NewReader(defaultUserAgents))
	}
	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open user agent pool: %w", err)
	}
	defer f.Close()
	return ParseUserAgents(f)
}

// ParseUserAgents reads one user agent per line. Blank lines and lines
// starting with '#' are skipped.
func ParseUserAgents(r io.Reader) (UserAgentPool, error) {
	var pool UserAgentPool
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pool = append(pool, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read user agent pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyUserAgentPool
	}
	return pool, nil
}

// Pick returns a random user agent from the pool.
func (p UserAgentPool) Pick() string {
	if len(p) == 0 {
		return ""
	}
	return p[rand.IntN(len(p))]
}
