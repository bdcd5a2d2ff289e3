// Package logger constructs the application-wide zap logger.
package logger

import (
	"go.uber.org/zap"
)

// New returns a production logger, or a development logger when verbose is set.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
