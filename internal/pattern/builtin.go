package pattern

import "time"

// defaultPatterns is the minimal built-in set installed when no
// partition yields any patterns. It covers the most common CI/CD
// failure classes so the engine is useful out of the box.
func defaultPatterns(now time.Time) []*Pattern {
	mk := func(id, name, category string, regexes, keywords []string, base float64) *Pattern {
		return &Pattern{
			ID:             id,
			Name:           name,
			Category:       category,
			RegexPatterns:  regexes,
			Keywords:       keywords,
			ConfidenceBase: base,
			SuccessRate:    0.8,
			CreatedAt:      now,
			UpdatedAt:      now,
			Source:         SourceManual,
		}
	}

	return []*Pattern{
		mk("builtin.docker_permission_denied",
			"Docker daemon permission denied", "permission",
			[]string{`(?i)permission denied.*docker`},
			[]string{"permission", "docker", "denied"},
			0.9),
		mk("builtin.docker_daemon_unreachable",
			"Docker daemon not running or unreachable", "infrastructure",
			[]string{`(?i)cannot connect to the docker daemon`},
			[]string{"docker", "daemon"},
			0.85),
		mk("builtin.oom_killed",
			"Process killed by the OOM killer", "resource",
			[]string{`(?i)out of memory`, `(?i)oom-?kill`, `signal: killed`},
			[]string{"memory", "killed", "oom"},
			0.85),
		mk("builtin.connection_refused",
			"TCP connection refused", "network",
			[]string{`(?i)connection refused`, `(?i)dial tcp .*: connect`},
			[]string{"connection", "refused", "dial"},
			0.8),
		mk("builtin.connection_timeout",
			"Network operation timed out", "network",
			[]string{`(?i)(connection|request|operation) timed? ?out`, `(?i)context deadline exceeded`},
			[]string{"timeout", "deadline"},
			0.75),
		mk("builtin.disk_full",
			"No space left on device", "resource",
			[]string{`(?i)no space left on device`, `(?i)disk quota exceeded`},
			[]string{"space", "device", "quota"},
			0.9),
		mk("builtin.npm_install_failure",
			"npm dependency installation failed", "dependency",
			[]string{`npm ERR!`, `(?i)could not resolve dependency`},
			[]string{"npm", "dependency"},
			0.8),
		mk("builtin.go_test_failure",
			"Go test failure", "test",
			[]string{`(?m)^--- FAIL: \S+`, `(?m)^FAIL\s+\S+`},
			[]string{"fail", "test"},
			0.8),
		mk("builtin.compile_error",
			"Compilation error", "build",
			[]string{`(?i)compilation (failed|error)`, `(?i)syntax error`, `(?m)undefined: \S+`},
			[]string{"compilation", "syntax", "undefined"},
			0.8),
		mk("builtin.auth_failure",
			"Authentication or authorization failure", "permission",
			[]string{`(?i)authentication fail`, `(?i)401 unauthorized`, `(?i)403 forbidden`, `(?i)invalid credentials`},
			[]string{"unauthorized", "forbidden", "credentials", "authentication"},
			0.8),
	}
}
