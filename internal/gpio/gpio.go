// Package gpio provides switch input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the level of one switch input.
type Reader interface {
	// Read returns the logical level of the switch: true = pressed/high.
	// Active-low inversion has already been applied.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)
