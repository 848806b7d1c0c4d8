// Package health checks that the environment can run appgen workflows. It
// backs the 'appgen doctor' command.
package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ariel-frischer/appgen/internal/config"
	"github.com/ariel-frischer/appgen/internal/generator"
	"github.com/ariel-frischer/appgen/internal/notify"
	"github.com/ariel-frischer/appgen/internal/store"
	"github.com/go-redis/redis/v8"
)

// RedisTimeout bounds the Redis ping.
const RedisTimeout = 2 * time.Second

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	// Optional checks are reported but do not fail the report.
	Optional bool `json:"optional,omitempty"`
}

// HealthReport contains all health check results
type HealthReport struct {
	Checks []CheckResult `json:"checks"`
	Passed bool          `json:"passed"`
}

// Pinger checks a Redis server. Tests replace it to avoid the network.
type Pinger func(ctx context.Context, addr, password string, db int) error

// PingRedis pings a Redis server with go-redis.
func PingRedis(ctx context.Context, addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	defer client.Close()
	return client.Ping(ctx).Err()
}

// Checker runs the checks for one configuration.
type Checker struct {
	cfg    *config.Configuration
	ping   Pinger
	sender notify.Sender
}

// NewChecker creates a Checker using the real Redis client and notification
// tools.
func NewChecker(cfg *config.Configuration) *Checker {
	return &Checker{cfg: cfg, ping: PingRedis, sender: notify.NewSender()}
}

// WithPinger replaces the Redis ping.
func (c *Checker) WithPinger(p Pinger) *Checker {
	c.ping = p
	return c
}

// WithSender replaces the notification sender used for tool detection.
func (c *Checker) WithSender(s notify.Sender) *Checker {
	c.sender = s
	return c
}

// RunHealthChecks runs all health checks and returns a report.
func (c *Checker) RunHealthChecks(ctx context.Context) *HealthReport {
	report := &HealthReport{Checks: make([]CheckResult, 0, 6), Passed: true}
	add := func(r CheckResult) {
		report.Checks = append(report.Checks, r)
		if !r.Passed && !r.Optional {
			report.Passed = false
		}
	}

	add(c.CheckGenerator())
	add(CheckWritableDir("State directory", c.cfg.StateDir))
	add(c.CheckDatabase())
	if c.cfg.ArtifactsDir != "" {
		add(CheckWritableDir("Artifacts directory", c.cfg.ArtifactsDir))
	}
	if c.cfg.Publish.Enabled {
		add(CheckWritableDir("Publish root", c.cfg.Publish.Root))
	}
	add(CheckListenAddr(c.cfg.HTTP.Addr))
	if c.cfg.Redis.Enabled {
		add(c.CheckRedis(ctx))
	}
	if c.cfg.Notifications.Enabled {
		add(c.CheckNotifications())
	}
	return report
}

// CheckGenerator verifies the configured generator can run.
func (c *Checker) CheckGenerator() CheckResult {
	const name = "Generator"
	gen, err := generator.New(c.cfg.Generator.Type, c.cfg.Generator.Command)
	if err != nil {
		return CheckResult{Name: name, Message: err.Error()}
	}
	cg, ok := gen.(*generator.CommandGenerator)
	if !ok {
		return CheckResult{Name: name, Passed: true, Message: "built-in templates"}
	}
	if err := cg.Validate(); err != nil {
		return CheckResult{Name: name, Message: err.Error()}
	}
	return CheckResult{Name: name, Passed: true, Message: fmt.Sprintf("command %q available", c.cfg.Generator.Command)}
}

// CheckWritableDir creates dir if needed and writes a probe file into it.
func CheckWritableDir(name, dir string) CheckResult {
	if dir == "" {
		return CheckResult{Name: name, Message: "not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{Name: name, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	f, err := os.CreateTemp(dir, ".appgen-doctor-*")
	if err != nil {
		return CheckResult{Name: name, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())
	return CheckResult{Name: name, Passed: true, Message: dir}
}

// CheckDatabase opens the snapshot database, applying migrations.
func (c *Checker) CheckDatabase() CheckResult {
	const name = "Database"
	st, err := store.Open(c.cfg.DBPath)
	if err != nil {
		return CheckResult{Name: name, Message: err.Error()}
	}
	defer st.Close()
	return CheckResult{Name: name, Passed: true, Message: filepath.Clean(st.Path())}
}

// CheckListenAddr validates the HTTP listen address without binding it.
func CheckListenAddr(addr string) CheckResult {
	const name = "HTTP address"
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return CheckResult{Name: name, Message: fmt.Sprintf("invalid address %q: %v", addr, err)}
	}
	return CheckResult{Name: name, Passed: true, Message: addr}
}

// CheckRedis pings the configured Redis server.
func (c *Checker) CheckRedis(ctx context.Context) CheckResult {
	const name = "Redis"
	ctx, cancel := context.WithTimeout(ctx, RedisTimeout)
	defer cancel()
	if err := c.ping(ctx, c.cfg.Redis.Addr, c.cfg.Redis.Password, c.cfg.Redis.DB); err != nil {
		return CheckResult{Name: name, Message: fmt.Sprintf("%s unreachable: %v", c.cfg.Redis.Addr, err)}
	}
	return CheckResult{Name: name, Passed: true, Message: c.cfg.Redis.Addr}
}

// CheckNotifications reports whether the platform notification tools exist.
// Missing tools only disable notifications, so the check is optional.
func (c *Checker) CheckNotifications() CheckResult {
	const name = "Notifications"
	visual, sound := c.sender.VisualAvailable(), c.sender.SoundAvailable()
	switch {
	case visual && sound:
		return CheckResult{Name: name, Passed: true, Optional: true, Message: "visual and sound available (" + notify.Platform() + ")"}
	case visual:
		return CheckResult{Name: name, Passed: true, Optional: true, Message: "visual only; no sound player found"}
	case sound:
		return CheckResult{Name: name, Passed: true, Optional: true, Message: "sound only; no notification tool found"}
	default:
		return CheckResult{Name: name, Optional: true, Message: "no notification tools found on " + notify.Platform()}
	}
}

// FormatReport formats the health report for console output
func FormatReport(report *HealthReport) string {
	var output string
	for _, check := range report.Checks {
		switch {
		case check.Passed:
			output += fmt.Sprintf("✓ %s: %s\n", check.Name, check.Message)
		case check.Optional:
			output += fmt.Sprintf("○ %s: %s\n", check.Name, check.Message)
		default:
			output += fmt.Sprintf("✗ %s: %s\n", check.Name, check.Message)
		}
	}
	return output
}
