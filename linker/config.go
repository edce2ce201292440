package linker

import (
	"errors"
	"fmt"

	"github.com/hemashushu/xiaoxuan-assembly/architecture"
	"github.com/hemashushu/xiaoxuan-assembly/object"
)

var ErrInvalidConfig = errors.New("invalid linker config")

type Config struct {
	// Alignment of each module's code within the image.  Zero means the
	// target platform's default.
	CodeAlignment int `yaml:"code_alignment"`

	// Alignment of the Normal data segment's address.  Must be at least
	// MaxAlignment so that every Normal symbol's address is aligned.
	DataAlignment int `yaml:"data_alignment"`

	object.Limits `yaml:",inline"`
}

func DefaultConfig() Config {
	return Config{
		DataAlignment: architecture.PageSize,
		Limits:        object.DefaultLimits(),
	}
}

func (config Config) Validate() error {
	if config.CodeAlignment != 0 &&
		!architecture.IsValidAlignment(config.CodeAlignment) {

		return fmt.Errorf(
			"%w: code_alignment %d is not a power of two",
			ErrInvalidConfig,
			config.CodeAlignment)
	}

	if !architecture.IsValidAlignment(config.DataAlignment) {
		return fmt.Errorf(
			"%w: data_alignment %d is not a power of two",
			ErrInvalidConfig,
			config.DataAlignment)
	}

	if !architecture.IsValidAlignment(config.MaxAlignment) {
		return fmt.Errorf(
			"%w: max_alignment %d is not a power of two",
			ErrInvalidConfig,
			config.MaxAlignment)
	}

	if config.MaxAlignment > config.DataAlignment {
		return fmt.Errorf(
			"%w: max_alignment %d exceeds data_alignment %d",
			ErrInvalidConfig,
			config.MaxAlignment,
			config.DataAlignment)
	}

	if config.MaxSegmentSize <= 0 {
		return fmt.Errorf(
			"%w: max_segment_size %d is not positive",
			ErrInvalidConfig,
			config.MaxSegmentSize)
	}

	return nil
}
