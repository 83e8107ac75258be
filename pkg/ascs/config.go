package ascs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// Default limits.
const (
	DefaultMaxAses        = 8
	DefaultMaxConnections = 3
	DefaultBaseHandle     = 0x0001

	// maxAsesLimit keeps ASE ids clear of the aborted-count marker.
	maxAsesLimit = 0xFE
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// NotifyHook may rewrite an ASE characteristic value before it is notified.
// It returns the value to send.
type NotifyHook func(cid uint32, aseID uint8, value []byte) []byte

// Config configures a Server.
type Config struct {
	// MaxAses is the number of ASEs exposed per connection.
	MaxAses int

	// MaxConnections is the number of simultaneous links tracked.
	MaxConnections int

	// BaseHandle is the handle of the service declaration. The attribute
	// handles of the ASE and Control Point characteristics follow it.
	BaseHandle uint16

	// NotifyHook optionally rewrites outgoing ASE notifications.
	NotifyHook NotifyHook

	// Logger is used for operational logging. Nil disables it.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Nil disables capture.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with the default limits.
func DefaultConfig() Config {
	return Config{
		MaxAses:        DefaultMaxAses,
		MaxConnections: DefaultMaxConnections,
		BaseHandle:     DefaultBaseHandle,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAses < 1 || c.MaxAses > maxAsesLimit {
		return fmt.Errorf("%w: MaxAses must be 1..%d, got %d", ErrInvalidConfig, maxAsesLimit, c.MaxAses)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("%w: MaxConnections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.BaseHandle == 0 {
		return fmt.Errorf("%w: BaseHandle must be non-zero", ErrInvalidConfig)
	}
	last := uint32(c.BaseHandle) + uint32(attributesPerAse*c.MaxAses) + attributesControlPoint
	if last > 0xFFFF {
		return fmt.Errorf("%w: handle range overflows at base %#04x", ErrInvalidConfig, c.BaseHandle)
	}
	return nil
}
